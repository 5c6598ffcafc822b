package builders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

// summaryKey holds the run summary injected into a JSON object.
const summaryKey = "_build"

// JSON validates and compacts a document. With the "summary" option set and
// when built in the config phase, the object gains a "_build" member
// describing the run it closes.
func JSON(env Env) registry.Factory {
	summary := boolOption(env.Options, "summary", false)

	return func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(ctx context.Context) (*registry.Result, error) {
			content, err := env.Src.ReadText(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			var compact bytes.Buffer
			if err := json.Compact(&compact, []byte(content)); err != nil {
				return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
			}

			var info *registry.Info
			data := compact.Bytes()
			if rep, ok := report.FromContext(ctx); ok && summary {
				withSummary, err := addSummary(data, rep)
				if err != nil {
					info = &registry.Info{Type: registry.InfoWarning, Text: err.Error()}
				} else {
					data = withSummary
				}
			}

			if err := writeIfChanged(env, path, string(data)); err != nil {
				return nil, err
			}
			res := registry.Leaf(path)
			res.Info = info
			return res, nil
		}), nil
	}
}

type runSummary struct {
	Token string `json:"token"`
	report.Counts
}

func addSummary(data []byte, rep *report.Report) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, errors.New("summary needs a JSON object")
	}
	encoded, err := json.Marshal(runSummary{Token: rep.Token, Counts: rep.Counts()})
	if err != nil {
		return nil, err
	}
	doc[summaryKey] = encoded
	return json.Marshal(doc)
}
