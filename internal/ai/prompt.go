package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stocknews/newsbot/internal/models"
)

const systemPrompt = "You are a financial news analyst. You answer with a JSON array only, without any prose or markdown."

const instructionTemplate = `다음은 금융 뉴스 %d건의 JSON 배열입니다. 각 항목마다 아래 규칙에 따라 분석하세요.

규칙:
1. overView: 한국어로 1~3문장 요약
2. translatedTitle: 제목의 한국어 번역
3. translatedContent: 본문의 한국어 번역
4. categories: 관련 종목 티커 배열. 반드시 다음 목록 중에서만 고르고, 해당하는 종목이 없으면 ["NONE"]
   허용 값: %s
5. sentimentType: POSITIVE, NEUTRAL, NEGATIVE 중 하나. 판단이 어려우면 NEUTRAL
6. sentimentRatio: 감성 판단의 확신도 (0.0 ~ 1.0 사이 실수)

출력 형식:
- 입력과 같은 순서, 같은 개수의 JSON 배열만 출력하세요. 배열 밖에는 어떤 텍스트도 쓰지 마세요.
- 각 원소는 {"overView": "", "translatedTitle": "", "translatedContent": "", "categories": [], "sentimentType": "", "sentimentRatio": 0.0} 형태입니다.

입력:
%s`

// buildPrompt embeds the serialized inputs in the fixed instruction
func buildPrompt(inputs []Input) (string, error) {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}

	vocabulary := make([]string, 0, len(models.KnownCategories()))
	for _, c := range models.KnownCategories() {
		vocabulary = append(vocabulary, string(c))
	}

	return fmt.Sprintf(instructionTemplate, len(inputs), strings.Join(vocabulary, ", "), data), nil
}

// extractJSONArray returns the text between the first '[' and the last ']'
func extractJSONArray(content string) (string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}
