package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/prepx/backend/internal/config"
	vapiService "github.com/zhouzirui/prepx/backend/internal/service/vapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: start, stop 或 replay")
	userName := flag.String("user", "Tester", "start: 传给工作流的 username")
	userID := flag.String("userid", "manual", "start: 传给工作流的 userid")
	callID := flag.String("call", "", "start/replay: 本服务的通话 ID，写入 metadata.callId")
	vendorCallID := flag.String("vendor-call", "", "replay: Vapi 通话 ID")
	controlURL := flag.String("control", "", "stop: monitor.controlUrl")
	server := flag.String("server", "http://localhost:8080", "replay: 后端地址")
	delay := flag.Duration("delay", 300*time.Millisecond, "replay: 每条消息之间的间隔")
	timeout := flag.Duration("timeout", 30*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "start":
		runStart(ctx, cfg.Vapi, *userName, *userID, *callID)
	case "stop":
		runStop(ctx, cfg.Vapi, *controlURL)
	case "replay":
		if *callID == "" && *vendorCallID == "" {
			log.Fatal("replay 需要 -call 或 -vendor-call")
		}
		runReplay(ctx, *server, cfg.Vapi.WebhookSecret, *callID, *vendorCallID, *delay)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=start、-mode=stop 或 -mode=replay 指定测试模式")
	}
}

func newClient(cfg config.VapiConfig) *vapiService.Client {
	if !cfg.Enabled() {
		log.Fatal("VAPI_API_KEY 未配置")
	}
	return vapiService.NewClient(vapiService.Config{
		APIKey:     cfg.APIKey,
		WorkflowID: cfg.WorkflowID,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
	})
}

func runStart(ctx context.Context, cfg config.VapiConfig, userName, userID, callID string) {
	metadata := map[string]string{}
	if callID != "" {
		metadata[vapiService.MetadataCallID] = callID
	}

	start := time.Now()
	resp, err := newClient(cfg).StartCall(ctx, vapiService.StartRequest{
		UserName: userName,
		UserID:   userID,
		Metadata: metadata,
	})
	if err != nil {
		log.Fatalf("创建通话失败: %v", err)
	}

	log.Printf("[START] 完成 (耗时 %s)", time.Since(start).Truncate(time.Millisecond))
	fmt.Printf("vendor call id: %s\n", resp.ID)
	fmt.Printf("status:         %s\n", resp.Status)
	fmt.Printf("control url:    %s\n", resp.Monitor.ControlURL)
}

func runStop(ctx context.Context, cfg config.VapiConfig, controlURL string) {
	if strings.TrimSpace(controlURL) == "" {
		log.Fatal("stop 需要 -control")
	}
	if err := newClient(cfg).StopCall(ctx, controlURL); err != nil {
		log.Fatalf("结束通话失败: %v", err)
	}
	log.Println("[STOP] 已发送 end-call")
}

// runReplay posts a scripted interview to the webhook, as Vapi would.
func runReplay(ctx context.Context, server, secret, callID, vendorCallID string, delay time.Duration) {
	callRef := map[string]any{"id": vendorCallID}
	if callID != "" {
		callRef["metadata"] = map[string]string{vapiService.MetadataCallID: callID}
	}

	script := []map[string]any{
		{"type": "status-update", "status": "in-progress"},
		{"type": "speech-update", "status": "started", "role": "assistant"},
		{"type": "transcript", "role": "assistant", "transcriptType": "partial", "transcript": "Hello, tell me"},
		{"type": "transcript", "role": "assistant", "transcriptType": "final", "transcript": "Hello, tell me about a project you are proud of?"},
		{"type": "speech-update", "status": "stopped", "role": "assistant"},
		{"type": "transcript", "role": "user", "transcriptType": "final", "transcript": "I built a Go API with a Postgres database and a cache in front of it."},
		{"type": "end-of-call-report", "endedReason": "customer-ended-call"},
	}

	url := strings.TrimRight(server, "/") + "/api/vapi/webhook"
	client := &http.Client{Timeout: 10 * time.Second}

	for i, msg := range script {
		msg["call"] = callRef
		body, _ := json.Marshal(map[string]any{"message": msg})

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			log.Fatalf("构造请求失败: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Vapi-Secret", secret)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("发送第 %d 条消息失败: %v", i+1, err)
		}
		reply, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Printf("[REPLAY] %d/%d %-20s -> %d %s", i+1, len(script), msg["type"], resp.StatusCode, strings.TrimSpace(string(reply)))

		time.Sleep(delay)
	}
}
