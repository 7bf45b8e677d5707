package llm

import (
	"context"
	"fmt"
)

// GeneratorJudge adapts a Generator into the compliance-judgment
// capability: the payload under audit becomes the user prompt and the
// policy instruction becomes the system instruction.
type GeneratorJudge struct {
	Generator Generator
}

// Judge sends the payload to the generator and returns the raw output.
func (j *GeneratorJudge) Judge(ctx context.Context, payload, instruction string) (string, error) {
	prompt := fmt.Sprintf("Audit this payload:\n%s", payload)
	resp, err := j.Generator.Generate(ctx, prompt, instruction)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
