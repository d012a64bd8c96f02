package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// maxMCPBodyLog caps how much of an MCP request body is buffered for inspection.
const maxMCPBodyLog = 64 << 10

// MCPRequestLogger logs one DEBUG entry per MCP JSON-RPC call with the method,
// tool name, argument names (never values), duration and any JSON-RPC error.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxMCPBodyLog))
			if err != nil {
				logger.Warn("Failed to read MCP request body", zap.Error(err))
			}
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

			var call rpcCall
			_ = json.Unmarshal(body, &call)

			captured := &bodyRecorder{statusRecorder: statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}}
			start := time.Now()
			next.ServeHTTP(captured, r)

			fields := []zap.Field{
				zap.String("method", call.Method),
				zap.String("tool", call.Params.Name),
				zap.Strings("argument_names", argumentNames(call.Params.Arguments)),
				zap.Int("status", captured.statusCode),
				zap.Duration("duration", time.Since(start)),
			}

			var reply rpcReply
			if json.Unmarshal(captured.body.Bytes(), &reply) == nil && reply.Error != nil {
				fields = append(fields,
					zap.Int("rpc_error_code", reply.Error.Code),
					zap.String("rpc_error", reply.Error.Message))
			}
			logger.Debug("MCP call", fields...)
		})
	}
}

type rpcCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcReply struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type bodyRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if r.body.Len() < maxMCPBodyLog {
		r.body.Write(b)
	}
	return r.statusRecorder.Write(b)
}

func argumentNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
