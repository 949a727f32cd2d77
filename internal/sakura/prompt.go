package sakura

import (
	"fmt"
	"strings"
)

// Substitution points of the AI rule text.
const (
	promptDescriptionSlot = "<Description>"
	promptUserSlot        = "<User>"
)

// outputInstruction pins the response shape the engine parses. Emotion must
// stay inside [-100,100]; the zero normalization happens after parsing.
const outputInstruction = `
# 出力(JSON)
{
	"Message": [考えたメッセージ(公共の電波に発信してよいもの)],
	"Emotion": [-100～100],
}`

func personaProfileBlock(p Persona) string {
	return fmt.Sprintf(`
- 以下を参照すること

  - 性別: %s
  - 年齢: %s
  - 性格: %s
  - モチベーション: %s
  - 弱点: %s
  - バックストーリー: %s
`, p.Gender, p.Age, p.Personality, p.Motivation, p.Weaknesses, p.Background)
}

// composePrompt fills the rule text with the rule description and the chosen
// persona profile, then appends the fixed JSON output instruction.
func composePrompt(ruleText, description string, p Persona) string {
	prompt := strings.Replace(ruleText, promptDescriptionSlot, description, 1)
	prompt = strings.Replace(prompt, promptUserSlot, personaProfileBlock(p), 1)
	return prompt + outputInstruction
}
