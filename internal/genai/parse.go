package genai

import (
	"fmt"
	"regexp"
	"strings"

	"mentalmaze-quiz-service/internal/domain"
)

var (
	questionRe = regexp.MustCompile(`(?i)^(?:question\s*\d*\s*:|\d+[.)])\s*(.+)$`)
	optionRe   = regexp.MustCompile(`(?i)^([A-D])[.)]\s*(.+)$`)
	correctRe  = regexp.MustCompile(`(?i)^correct answer:\s*([A-D])\b`)

	markupRe     = regexp.MustCompile("[*_`#>~]+")
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ParseQuestions reads the canonical per-question block format: a prompt
// line, four labeled option lines, and a "Correct Answer: <letter>" line.
func ParseQuestions(text string) ([]domain.Question, error) {
	var (
		questions []domain.Question
		current   *domain.Question
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		if len(current.Options) != len(optionLabels) {
			return fmt.Errorf("question %d has %d options, want %d", len(questions)+1, len(current.Options), len(optionLabels))
		}
		if current.Correct == "" {
			return fmt.Errorf("question %d is missing a correct answer", len(questions)+1)
		}
		current.Index = len(questions)
		questions = append(questions, *current)
		current = nil
		return nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := questionRe.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			current = &domain.Question{Prompt: strings.TrimSpace(m[1])}
			continue
		}
		if current == nil {
			continue
		}
		if m := optionRe.FindStringSubmatch(line); m != nil {
			current.Options = append(current.Options, domain.Option{
				Label: strings.ToUpper(m[1]),
				Text:  strings.TrimSpace(m[2]),
			})
			continue
		}
		if m := correctRe.FindStringSubmatch(line); m != nil {
			current.Correct = strings.ToUpper(m[1])
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found in response")
	}
	return questions, nil
}

// SanitizeContext normalizes free-form context text before prompting: markdown
// links keep their label, raw URLs and HTML tags are dropped, markup noise is
// stripped, and whitespace collapses to single spaces.
func SanitizeContext(text string) string {
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = urlRe.ReplaceAllString(text, "")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = markupRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
