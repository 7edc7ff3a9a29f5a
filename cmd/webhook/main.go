package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tidwall/gjson"

	"github.com/jose-valero/group-guard-bot/internal/adapters/onebot"
	"github.com/jose-valero/group-guard-bot/internal/infra/storage"
)

// Receptor de eventos OneBot en Lambda: verifica la firma, guarda el evento en onebot_inbox y
// avisa al bot por pg_notify. Los meta_event (heartbeat) no se guardan.

var (
	inbox  *storage.Inbox
	secret = os.Getenv("ONEBOT_SECRET")
	log    = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

func init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Warn("DATABASE_URL empty; events will be rejected")
		return
	}
	pool, err := storage.OpenPool(context.Background(), dsn, 4)
	if err != nil {
		log.Error("db", "err", err)
		return
	}
	inbox = storage.NewInbox(pool, log)
}

func header(req events.APIGatewayV2HTTPRequest, name string) string {
	if v := req.Headers[strings.ToLower(name)]; v != "" {
		return v
	}
	return req.Headers[name]
}

func reply(code int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{StatusCode: code, Body: body}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log.Info("webhook hit",
		"path", req.RawPath, "method", req.RequestContext.HTTP.Method,
		"ip", req.RequestContext.HTTP.SourceIP, "b64", req.IsBase64Encoded)

	if req.RequestContext.HTTP.Method != "" && req.RequestContext.HTTP.Method != "POST" {
		return reply(405, "method not allowed"), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return reply(400, "invalid base64"), nil
		}
		body = dec
	}

	// la firma va sobre el body crudo
	if secret != "" && !onebot.ValidSignature(secret, body, header(req, "X-Signature")) {
		log.Warn("auth: invalid signature")
		return reply(401, "unauthorized"), nil
	}
	if !gjson.ValidBytes(body) {
		return reply(400, "invalid json"), nil
	}

	postType := gjson.GetBytes(body, "post_type").String()
	if postType == "meta_event" {
		return reply(204, ""), nil
	}
	if inbox == nil {
		return reply(503, "no db"), nil
	}

	id, err := inbox.Insert(ctx, postType, body)
	if err != nil && id == 0 {
		log.Error("inbox insert", "err", err)
		return reply(500, "store failed"), nil
	}
	if err != nil {
		log.Warn("inbox notify", "id", id, "err", err)
	}
	log.Info("event stored", "id", id, "post_type", postType)
	return reply(204, ""), nil
}

func main() { lambda.Start(handler) }
