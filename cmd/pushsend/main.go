// Command pushsend delivers one push message to the edge.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"AwesomeShop/internal/push"
	"AwesomeShop/pkg/kit"
)

func main() {
	_ = godotenv.Load()

	var (
		edgeURL = flag.String("edge", getenv("EDGE_URL", "http://localhost:8080"), "edge base URL")
		sender  = flag.String("sender", "pushsend", "sender name carried in the token")
		title   = flag.String("title", "", "notification title")
		body    = flag.String("body", "", "notification body")
		icon    = flag.String("icon", "", "notification icon URL")
		badge   = flag.String("badge", "", "notification badge URL")
		target  = flag.String("url", "", "page to open on click")
		raw     = flag.String("data", "", "raw payload, sent as-is instead of the fields above")
		timeout = flag.Duration("timeout", 5*time.Second, "request timeout")
	)
	flag.Parse()

	log := kit.NewLogger("pushsend", getenv("LOG_LEVEL", "info"))
	defer func() { _ = log.Sync() }()

	secret := os.Getenv("PUSH_SECRET")
	if len(secret) < 32 {
		log.Fatal("PUSH_SECRET is required and must be at least 32 chars")
	}

	payload := []byte(*raw)
	if *raw == "" {
		var err error
		payload, err = json.Marshal(push.Payload{
			Title: *title,
			Body:  *body,
			Icon:  *icon,
			Badge: *badge,
			URL:   *target,
		})
		if err != nil {
			log.Fatal("encode payload failed", zap.Error(err))
		}
	}

	tok, err := push.NewTokenMaker(secret).New(*sender, time.Minute)
	if err != nil {
		log.Fatal("sign token failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status, out, err := send(ctx, strings.TrimRight(*edgeURL, "/")+"/_sw/push", tok, payload)
	if err != nil {
		log.Fatal("push failed", zap.Error(err))
	}
	if status != http.StatusCreated {
		log.Fatal("push rejected", zap.Int("status", status), zap.ByteString("body", out))
	}
	fmt.Println(string(bytes.TrimSpace(out)))
}

func send(ctx context.Context, url, token string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, out, err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
