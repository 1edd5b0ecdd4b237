// Package crossref 提供提及检测与交叉引用索引
package crossref

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/pkg/metrics"
	"story-crossref-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// 置信度常量：基础分 + 规范名加成 + 线索词加成，上限 1.0
const (
	confidenceBase      = 0.8
	confidenceExactName = 0.15
	confidenceCueWord   = 0.05
	confidenceMax       = 1.0
)

// DetectorConfig 检测器配置
type DetectorConfig struct {
	// ContextRadius 上下文截取半径（匹配位置两侧字符数）
	ContextRadius int
	// MinTermLength 参与匹配的最短候选词长度，过短的名称不可匹配
	MinTermLength int
	// CueWords 各实体类型的上下文线索词（外部配置数据，不硬编码）
	CueWords map[entity.EntityType][]string
}

// Detector 提及检测器
// 匹配规则：大小写不敏感、整词边界、别名感知；不做模糊或多语言分词
type Detector struct {
	cfg  DetectorConfig
	cues map[entity.EntityType]map[string]struct{}
}

// NewDetector 创建检测器
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.ContextRadius <= 0 {
		cfg.ContextRadius = 50
	}
	if cfg.MinTermLength < 2 {
		cfg.MinTermLength = 2
	}

	cues := make(map[entity.EntityType]map[string]struct{}, len(cfg.CueWords))
	for t, words := range cfg.CueWords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[strings.ToLower(w)] = struct{}{}
		}
		cues[t] = set
	}

	return &Detector{cfg: cfg, cues: cues}
}

// candidate 单次原始匹配
type candidate struct {
	ent      *entity.CatalogEntity
	position int
	matched  string
	context  string
}

// Detect 在正文中检测目录实体的提及
// 同一实体的多次出现折叠为一条，保留位置最靠前的那次；
// 空文本返回空结果而非错误
func (d *Detector) Detect(ctx context.Context, storyID, text string, catalog *entity.Catalog) []*entity.Mention {
	_, span := tracer.Start(ctx, "crossref.Detector.Detect")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	}()

	if text == "" || catalog == nil {
		span.SetAttributes(attribute.Int("crossref.mentions", 0))
		return []*entity.Mention{}
	}

	runes := []rune(text)
	lower := lowerRunes(runes)

	// 按 (类型, 实体) 折叠，保留首次出现
	firstSeen := make(map[string]*candidate)
	order := make([]string, 0, 16)

	for _, t := range entity.AllEntityTypes() {
		for _, ent := range catalog.ByType(t) {
			for _, term := range ent.MatchTerms(d.cfg.MinTermLength) {
				for _, pos := range d.findWholeWord(lower, term) {
					key := string(ent.Type) + ":" + ent.ID
					if prev, ok := firstSeen[key]; ok && prev.position <= pos {
						continue
					}
					matched := string(runes[pos : pos+len([]rune(term))])
					if _, ok := firstSeen[key]; !ok {
						order = append(order, key)
					}
					firstSeen[key] = &candidate{
						ent:      ent,
						position: pos,
						matched:  matched,
						context:  d.extractContext(runes, pos, len([]rune(term))),
					}
				}
			}
		}
	}

	mentions := make([]*entity.Mention, 0, len(firstSeen))
	for _, key := range order {
		c := firstSeen[key]
		mentions = append(mentions, &entity.Mention{
			ID:              uuid.New().String(),
			StoryID:         storyID,
			EntityType:      c.ent.Type,
			EntityID:        c.ent.ID,
			EntityName:      c.ent.Name,
			Context:         c.context,
			Position:        c.position,
			ConfidenceScore: d.score(c),
		})
	}

	// 输出顺序对调用方不敏感，按位置排序保证确定性
	sort.Slice(mentions, func(i, j int) bool {
		return mentions[i].Position < mentions[j].Position
	})

	span.SetAttributes(attribute.Int("crossref.mentions", len(mentions)))
	metrics.MentionsDetected.Observe(float64(len(mentions)))
	return mentions
}

// findWholeWord 在小写化正文中查找候选词的全部整词出现位置（按字符偏移）
func (d *Detector) findWholeWord(lower []rune, term string) []int {
	needle := []rune(strings.ToLower(term))
	if len(needle) == 0 || len(needle) > len(lower) {
		return nil
	}

	var positions []int
	for i := 0; i+len(needle) <= len(lower); i++ {
		if !runesEqual(lower[i:i+len(needle)], needle) {
			continue
		}
		// 整词边界：两侧不能是字母或数字，防止 "Milly" 命中 "Millyson"
		if i > 0 && isWordRune(lower[i-1]) {
			continue
		}
		if next := i + len(needle); next < len(lower) && isWordRune(lower[next]) {
			continue
		}
		positions = append(positions, i)
	}
	return positions
}

// extractContext 截取匹配位置两侧固定半径的上下文并去除首尾空白
func (d *Detector) extractContext(runes []rune, pos, termLen int) string {
	from := pos - d.cfg.ContextRadius
	if from < 0 {
		from = 0
	}
	to := pos + termLen + d.cfg.ContextRadius
	if to > len(runes) {
		to = len(runes)
	}
	return strings.TrimSpace(string(runes[from:to]))
}

// score 计算置信度
func (d *Detector) score(c *candidate) float64 {
	score := confidenceBase
	if strings.EqualFold(c.matched, c.ent.Name) {
		score += confidenceExactName
	}
	if d.hasCueWord(c.ent.Type, c.context) {
		score += confidenceCueWord
	}
	if score > confidenceMax {
		score = confidenceMax
	}
	return score
}

// hasCueWord 判断上下文中是否出现该类型的线索词（整词、大小写不敏感）
func (d *Detector) hasCueWord(t entity.EntityType, context string) bool {
	set := d.cues[t]
	if len(set) == 0 {
		return false
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(context), func(r rune) bool {
		return !isWordRune(r)
	}) {
		if _, ok := set[word]; ok {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
