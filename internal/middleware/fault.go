package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

type fault struct {
	method string
	prefix string
	status int
	times  int
}

// Faults は開発・テスト用に指定したリクエストを失敗させる。
type Faults struct {
	mu     sync.Mutex
	faults []*fault
}

func NewFaults() *Faults {
	return &Faults{}
}

// FailNext は method と path の前方一致で次の times 回を status で返す
func (f *Faults) FailNext(method, pathPrefix string, status, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &fault{method: method, prefix: pathPrefix, status: status, times: times})
}

func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

func (f *Faults) take(method, path string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ft := range f.faults {
		if ft.method != method || !strings.HasPrefix(path, ft.prefix) {
			continue
		}
		ft.times--
		if ft.times <= 0 {
			f.faults = append(f.faults[:i], f.faults[i+1:]...)
		}
		return ft.status, true
	}
	return 0, false
}

// InjectFaults は登録済みの失敗を返す。無ければそのまま通す
func InjectFaults(f *Faults) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if f == nil {
				return next(c)
			}
			status, ok := f.take(c.Request().Method, c.Request().URL.Path)
			if !ok {
				return next(c)
			}
			return c.JSON(status, errorResponse{
				Message:    "injected failure",
				Error:      http.StatusText(status),
				StatusCode: status,
			})
		}
	}
}
