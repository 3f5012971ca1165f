package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	analysis "github.com/zhouzirui/prepx/backend/internal/analysis/transcript"
	"github.com/zhouzirui/prepx/backend/internal/model/call"
	"github.com/zhouzirui/prepx/backend/internal/model/interview"
)

var (
	ErrNoInterview     = errors.New("call is not bound to an interview")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

const defaultTimeout = 60 * time.Second

// Config 控制反馈生成。
type Config struct {
	// Enabled 为 false 时只使用启发式评分。
	Enabled bool
	// Timeout 限制一次完成钩子的总耗时。
	Timeout time.Duration
}

// Service 在通话结束后为面试生成评估，并写入面试存储。
type Service struct {
	enabled   bool
	evaluator compose.Runnable[map[string]any, *schema.Message]
	store     interview.Store
	timeout   time.Duration
	now       func() time.Time
}

// NewService 创建反馈服务。chatModel 为 nil 时回退到启发式评分。
func NewService(ctx context.Context, chatModel model.ChatModel, store interview.Store, cfg Config) (*Service, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	svc := &Service{
		enabled: cfg.Enabled && chatModel != nil,
		store:   store,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(feedbackSystemPrompt),
		schema.UserMessage(feedbackUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile feedback chain: %w", err)
	}
	svc.evaluator = runnable
	return svc, nil
}

// Enabled 返回是否使用大模型评估。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.evaluator != nil
}

// HandleFinished 作为通话结束钩子，在后台生成反馈。
func (s *Service) HandleFinished(snapshot call.Call) {
	if snapshot.InterviewID == "" || len(snapshot.Transcript) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		fb, err := s.Generate(ctx, snapshot)
		if err != nil {
			log.Printf("[feedback] generate failed call=%s interview=%s: %v", snapshot.ID, snapshot.InterviewID, err)
			return
		}
		log.Printf("[feedback] stored feedback=%s interview=%s score=%d", fb.ID, fb.InterviewID, fb.TotalScore)
	}()
}

// Generate 评估一次已结束的通话并保存结果。
func (s *Service) Generate(ctx context.Context, snapshot call.Call) (interview.Feedback, error) {
	if snapshot.InterviewID == "" {
		return interview.Feedback{}, ErrNoInterview
	}
	if len(snapshot.Transcript) == 0 {
		return interview.Feedback{}, ErrEmptyTranscript
	}

	item, err := s.store.FindByID(ctx, snapshot.InterviewID)
	if err != nil {
		return interview.Feedback{}, err
	}

	fb := s.evaluate(ctx, item, snapshot.Transcript)
	fb.ID = uuid.NewString()
	fb.InterviewID = item.ID
	fb.UserID = snapshot.UserID
	fb.CreatedAt = s.now()

	if err := s.store.SaveFeedback(ctx, fb); err != nil {
		return interview.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return fb, nil
}

func (s *Service) evaluate(ctx context.Context, item interview.Interview, entries []call.Entry) interview.Feedback {
	if !s.Enabled() {
		return fallbackFeedback(entries)
	}

	input := map[string]any{
		"role":       item.Role,
		"level":      fallbackText(item.Level, "unspecified"),
		"type":       interview.NormalizeType(item.Type),
		"techstack":  fallbackText(strings.Join(item.Techstack, ", "), "unspecified"),
		"transcript": formatTranscript(entries),
	}

	msg, err := s.evaluator.Invoke(ctx, input)
	if err != nil {
		log.Printf("[feedback] evaluator invoke failed, use fallback: %v", err)
		return fallbackFeedback(entries)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fallbackFeedback(entries)
	}

	payload, err := parseEvaluatorOutput(msg.Content)
	if err != nil {
		log.Printf("[feedback] evaluator output parse failed, use fallback: %v", err)
		return fallbackFeedback(entries)
	}
	return payload.toFeedback()
}

func fallbackFeedback(entries []call.Entry) interview.Feedback {
	assessment := analysis.Assess(entries)
	scores := make([]interview.CategoryScore, 0, len(assessment.Categories))
	for _, c := range assessment.Categories {
		scores = append(scores, interview.CategoryScore{Name: c.Name, Score: c.Score, Comment: c.Comment})
	}
	return interview.Feedback{
		TotalScore:          assessment.Total,
		CategoryScores:      scores,
		Strengths:           assessment.Strengths,
		AreasForImprovement: assessment.AreasForImprovement,
		FinalAssessment:     assessment.Summary,
	}
}

// parseEvaluatorOutput 截取回复中的 JSON 对象。
func parseEvaluatorOutput(content string) (*evaluatorPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &evaluatorPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	if len(payload.CategoryScores) == 0 && strings.TrimSpace(payload.FinalAssessment) == "" {
		return nil, fmt.Errorf("empty evaluation")
	}
	return payload, nil
}

func formatTranscript(entries []call.Entry) string {
	var builder strings.Builder
	for _, entry := range entries {
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			continue
		}
		builder.WriteString("- ")
		builder.WriteString(speakerLabel(entry.Role))
		builder.WriteString(": ")
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}

func speakerLabel(role call.Role) string {
	switch role {
	case call.RoleUser:
		return "Candidate"
	case call.RoleAssistant:
		return "Interviewer"
	default:
		return "System"
	}
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

type evaluatorPayload struct {
	TotalScore     int `json:"totalScore"`
	CategoryScores []struct {
		Name    string `json:"name"`
		Score   int    `json:"score"`
		Comment string `json:"comment"`
	} `json:"categoryScores"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	FinalAssessment     string   `json:"finalAssessment"`
}

func (p *evaluatorPayload) toFeedback() interview.Feedback {
	scores := make([]interview.CategoryScore, 0, len(p.CategoryScores))
	sum := 0
	for _, c := range p.CategoryScores {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		score := analysis.ClampScore(c.Score)
		sum += score
		scores = append(scores, interview.CategoryScore{Name: name, Score: score, Comment: strings.TrimSpace(c.Comment)})
	}

	total := analysis.ClampScore(p.TotalScore)
	if total == 0 && len(scores) > 0 {
		total = sum / len(scores)
	}

	return interview.Feedback{
		TotalScore:          total,
		CategoryScores:      scores,
		Strengths:           trimAll(p.Strengths),
		AreasForImprovement: trimAll(p.AreasForImprovement),
		FinalAssessment:     strings.TrimSpace(p.FinalAssessment),
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const feedbackSystemPrompt = "You are a professional interviewer analysing a mock interview. Be thorough and detailed, do not be lenient. Point out mistakes and areas for improvement.\n" +
	"Score the candidate from 0 to 100 in exactly these categories: Communication Skills, Technical Knowledge, Problem Solving, Cultural & Role Fit, Confidence & Clarity.\n" +
	"Reply with a single JSON object only, with fields: totalScore (0-100 integer), categoryScores (array of objects with name, score, comment), strengths (array of strings), areasForImprovement (array of strings), finalAssessment (short paragraph). No other text."

const feedbackUserPrompt = "Role: {role}\nLevel: {level}\nInterview type: {type}\nTech stack: {techstack}\n\nTranscript:\n{transcript}\n\nReturn the JSON evaluation."
