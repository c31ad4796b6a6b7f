package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/prompt"
)

// pageAnalysis はページ分析レスポンスの JSON 形です。
type pageAnalysis struct {
	OverallScene struct {
		Location         string `json:"location"`
		Mood             string `json:"mood"`
		TimeContext      string `json:"time_context"`
		SceneDescription string `json:"scene_description"`
	} `json:"overall_scene"`
	CharactersAnalysis []struct {
		Name              string `json:"name"`
		VisualDescription string `json:"visual_description"`
		Emotion           string `json:"emotion"`
	} `json:"characters_analysis"`
	StoryElements struct {
		Genre             string   `json:"genre"`
		KeyVisualElements []string `json:"key_visual_elements"`
		KeyEvents         []string `json:"key_events"`
	} `json:"story_elements"`
	PanelStructure struct {
		Layout string `json:"layout"`
	} `json:"panel_structure"`
}

// AnalyzePage はページ全体の画像から意味的文脈を推定します。
//
// モデルが JSON をコードブロックで囲って返すことがあるため、
// 囲いを剥がしてから復号します。失敗は呼び出し側で中立文脈へ
// フォールバックする前提のエラーとして返します。
func (c *Client) AnalyzePage(ctx context.Context, imageData []byte, pageNumber int) (contextstore.PageContext, []contextstore.CharacterSighting, error) {
	raw, err := c.completeWithImage(ctx, prompt.PageAnalysisPrompt, imageData)
	if err != nil {
		return contextstore.PageContext{}, nil, fmt.Errorf("ページ分析に失敗しました: %w", err)
	}

	var analysis pageAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &analysis); err != nil {
		return contextstore.PageContext{}, nil, fmt.Errorf("ページ分析のJSON復号に失敗しました: %w", err)
	}

	pc := contextstore.PageContext{
		PageNumber:       pageNumber,
		Location:         analysis.OverallScene.Location,
		Mood:             analysis.OverallScene.Mood,
		TimeContext:      analysis.OverallScene.TimeContext,
		SceneDescription: analysis.OverallScene.SceneDescription,
		Genre:            analysis.StoryElements.Genre,
		VisualElements:   analysis.StoryElements.KeyVisualElements,
		KeyEvents:        analysis.StoryElements.KeyEvents,
		PanelLayout:      analysis.PanelStructure.Layout,
	}

	sightings := make([]contextstore.CharacterSighting, 0, len(analysis.CharactersAnalysis))
	for _, ca := range analysis.CharactersAnalysis {
		name := strings.TrimSpace(ca.Name)
		if name == "" {
			continue
		}
		pc.CharactersPresent = append(pc.CharactersPresent, name)
		sightings = append(sightings, contextstore.CharacterSighting{
			Name:              name,
			VisualDescription: ca.VisualDescription,
			Emotion:           ca.Emotion,
		})
	}

	return pc, sightings, nil
}

// extractJSON は ```json フェンスなどの囲いを除去し、JSON 本体だけを切り出します。
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		start := 3
		if idx := strings.Index(content[start:], "\n"); idx != -1 {
			start += idx + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			content = content[start : start+end]
		} else {
			content = content[start:]
		}
	}

	content = strings.TrimSpace(content)

	if start := strings.Index(content, "{"); start != -1 {
		if end := strings.LastIndex(content, "}"); end != -1 && end > start {
			content = content[start : end+1]
		}
	}

	return strings.TrimSpace(content)
}
