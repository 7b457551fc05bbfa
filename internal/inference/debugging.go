package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Quick ad-hoc HTTP tracing for the OpenAI client, enabled by setting
// DRAFTLOOP_INFERENCE_LOG_FILE. Avoids threading a logger through every call site
// just to debug a single request.
var debugHTTPLog *os.File

func init() {
	logFilePath := os.Getenv("DRAFTLOOP_INFERENCE_LOG_FILE")
	if logFilePath == "" {
		return
	}
	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(err)
	}
	debugHTTPLog = f
}

func debugPrint(msg string, obj any) {
	if debugHTTPLog == nil {
		return
	}
	if obj == nil {
		fmt.Fprintf(debugHTTPLog, "== DEBUG: %s (nil)\n", msg)
		return
	}
	fmt.Fprintf(debugHTTPLog, "== DEBUG: %s\n", msg)

	if s, ok := obj.(string); ok {
		var out bytes.Buffer
		if err := json.Indent(&out, []byte(s), "", "  "); err == nil {
			_, _ = debugHTTPLog.Write(out.Bytes())
			_, _ = debugHTTPLog.Write([]byte("\n"))
			return
		}
		fmt.Fprintln(debugHTTPLog, s)
		return
	}

	if err, ok := obj.(error); ok {
		fmt.Fprintln(debugHTTPLog, err.Error())
		return
	}

	if b, err := json.MarshalIndent(obj, "", "  "); err == nil {
		_, _ = debugHTTPLog.Write(b)
		_, _ = debugHTTPLog.Write([]byte("\n"))
		return
	}

	fmt.Fprintf(debugHTTPLog, "%v\n", obj)
}
