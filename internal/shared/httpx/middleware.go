package httpx

import (
	"net/http"
	"time"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog emite uma linha de log por requisição
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if ce := log.Check(levelByStatus(rw.status), "http.access"); ce != nil {
				ce.Write(
					zap.Int("status", rw.status),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chimid.GetReqID(r.Context())),
					zap.Duration("latency", time.Since(start)),
				)
			}
		})
	}
}

func levelByStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Compress comprime respostas JSON quando o cliente aceita gzip
func Compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// Stack é a pilha padrão das APIs públicas
func Stack(log *zap.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimid.RequestID,
		chimid.RealIP,
		AccessLog(log),
		chimid.Recoverer,
		Compress,
	}
}
