package restyutil

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type messageIdKey struct{}

type dumper struct {
	output InstrumentOutput
	prefix string
	ids    *atomic.Uint64
}

// InstrumentClient dumps every request/response pair made by client into
// output, ids are `<prefix>-<n>` in request order. A nil output is a no-op.
func InstrumentClient(client *resty.Client, prefix string, output InstrumentOutput) {
	if output == nil {
		return
	}
	d := dumper{output: output, prefix: prefix, ids: &atomic.Uint64{}}
	client.OnBeforeRequest(d.onBeforeRequest)
	client.OnAfterResponse(d.onAfterResponse)
	client.OnError(d.onError)
}

func (d dumper) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	id := fmt.Sprintf("%s-%04d", d.prefix, d.ids.Add(1))
	req.SetContext(context.WithValue(req.Context(), messageIdKey{}, id))
	slog.DebugContext(req.Context(), "start request", "method", req.Method, "url", req.URL, "message_id", id)
	return nil
}

func (d dumper) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	id, ok := res.Request.Context().Value(messageIdKey{}).(string)
	if !ok {
		return nil
	}
	d.output.Write(id, formatHttpMessage(res))
	return nil
}

func (d dumper) onError(req *resty.Request, err error) {
	id, _ := req.Context().Value(messageIdKey{}).(string)
	slog.DebugContext(
		req.Context(), "request failed",
		"method", req.Method,
		"url", req.URL,
		"err", err,
		"message_id", id,
	)
}
