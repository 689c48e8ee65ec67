package telemetry

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
	"inventory-scrapers/lib/restyutil"
)

// response bodies of catalog pages run into megabytes, spans keep a prefix
const maxBodyAttribute = 4096

// InstrumentResty opens a span per request made through client. Sensitive
// headers (storefront tokens, cookies) are redacted from span attributes.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(onBeforeRequest(tracer))
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func onBeforeRequest(tracer trace.Tracer) resty.RequestMiddleware {
	return func(cli *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), req.Method)
		req.SetContext(ctx)
		return nil
	}
}

func headerAttributes(prefix string, headers http.Header) []attribute.KeyValue {
	var out []attribute.KeyValue
	for header, values := range restyutil.RedactHeaders(headers) {
		out = append(out, attribute.StringSlice(
			fmt.Sprintf("%s/header: %s", prefix, header),
			values,
		))
	}
	return out
}

func truncate(body string) string {
	if len(body) <= maxBodyAttribute {
		return body
	}
	return body[:maxBodyAttribute] + "...(truncated)"
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	// request attributes are set here since res.Request.RawRequest is nil in onBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	if res.RawResponse != nil {
		span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	}
	if res.Request.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	}
	span.SetAttributes(headerAttributes("request", res.Request.Header)...)
	span.SetAttributes(headerAttributes("response", res.Header())...)
	span.SetAttributes(attribute.String("response/body", truncate(res.String())))

	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, res.Status())
	}
	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	span.SetName(fmt.Sprintf("http %s", req.Method))
	span.SetAttributes(headerAttributes("request", req.Header)...)

	if req.RawRequest == nil {
		return
	}
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
}
