// Package classroom はGitHub Classroom APIとの連携機能を提供する。
// 課題一覧取得エンドポイントの呼び出しを含む。
package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/classcal/internal/assignment"
	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/model"
)

// Client はClassroom APIのクライアント。
// 課題一覧エンドポイントを呼び出し、AssignmentDefinitionの列を上流順で返す。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	collector   metrics.MetricsCollector
	baseURL     string
	classroomID string
	token       string // 空の場合はAuthorizationヘッダーを付けない
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, baseURL, classroomID, token string) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		collector:   collector,
		baseURL:     baseURL,
		classroomID: classroomID,
		token:       token,
	}
}

// assignmentResponse は課題一覧エンドポイントのレスポンス1件分。
// slugが空の場合はtitleから導出する。
type assignmentResponse struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Deadline      string `json:"deadline"`
	AcceptedCount int    `json:"accepted"`
}

// ListAssignments はClassroomの課題一覧を取得する。
// 取得失敗時はUpstreamUnavailableErrorを返す（呼び出し元が再試行を判断する）。
func (c *Client) ListAssignments(ctx context.Context) ([]*model.AssignmentDefinition, error) {
	reqURL := fmt.Sprintf("%s/classrooms/%s/assignments", c.baseURL, c.classroomID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "Classcal/1.0 Deadline Sync")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Classroom APIの呼び出しに失敗しました",
			slog.String("classroom_id", c.classroomID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError("classroom", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Classroom APIがエラーステータスを返しました",
			slog.String("classroom_id", c.classroomID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUpstreamUnavailableError("classroom", fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError("classroom", err.Error())
	}

	var items []assignmentResponse
	if err := json.Unmarshal(body, &items); err != nil {
		c.logger.Error("Classroom APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError("classroom", "invalid response body")
	}

	c.collector.RecordCacheRefresh()

	assignments := make([]*model.AssignmentDefinition, 0, len(items))
	for _, item := range items {
		slug := item.Slug
		if slug == "" {
			slug = assignment.Slugify(item.Title)
		}
		assignments = append(assignments, &model.AssignmentDefinition{
			Slug:          slug,
			Title:         item.Title,
			Deadline:      item.Deadline,
			AcceptedCount: item.AcceptedCount,
		})
	}

	return assignments, nil
}

// compile-time interface check
var _ assignment.Lister = (*Client)(nil)
