package reconcile

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

const ContextTnc = "leaderboard-tnc"

var (
	numberedItem = regexp.MustCompile(`\d+\.\s+`)
	blankLines   = regexp.MustCompile(`\s*\n\s*\n\s*`)
)

// SplitTnc quebra o texto da API em itens numerados ("1. ...", "2. ...").
// Sem numeração, separa por linhas em branco.
func SplitTnc(t dto.TncText) []string {
	if t.Items != nil {
		return t.Items
	}
	text := t.Text
	var items []string
	starts := numberedItem.FindAllStringIndex(text, -1)
	if len(starts) > 0 {
		if head := strings.TrimSpace(text[:starts[0][0]]); head != "" {
			items = append(items, head)
		}
		for i, s := range starts {
			end := len(text)
			if i+1 < len(starts) {
				end = starts[i+1][0]
			}
			if item := strings.TrimSpace(text[s[0]:end]); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	for _, part := range blankLines.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// NormalizeText deixa só letras e dígitos em minúsculas
func NormalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tnc compara os termos do leaderboard na API com a lista exibida
func (v *Verifier) Tnc(ctx context.Context) *Report {
	rep := NewReport(ContextTnc)
	tnc, err := v.API.LeaderboardTnc(ctx)
	if err != nil {
		rep.Fail("tnc", SourceAPI, "readable", err.Error())
		return v.finish(rep)
	}
	apiItems := SplitTnc(tnc)
	if len(apiItems) == 0 {
		rep.Fail("tnc", SourceAPI, "non-empty", "")
		return v.finish(rep)
	}
	if !v.withUI(rep) {
		rep.Pass()
		return v.finish(rep)
	}

	rows, err := v.UI.Rows(ctx, NewScope(ViewLeaderboardTnc))
	if err != nil {
		rep.Fail("tnc", SourceUI, "readable", err.Error())
		return v.finish(rep)
	}
	uiItems := make([]string, 0, len(rows))
	for _, r := range rows {
		uiItems = append(uiItems, strings.TrimSpace(r.Cell(ColText)))
	}
	v.Log.Debug("tnc items", zap.Int("api", len(apiItems)), zap.Int("ui", len(uiItems)))

	rep.Text("tnc", SourceUI, NormalizeText(strings.Join(apiItems, " ")), NormalizeText(strings.Join(uiItems, " ")))
	return v.finish(rep)
}
