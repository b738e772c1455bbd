package classroom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
)

type entity interface {
	Group | Student | Task | Evaluation
}

// decode turns doc into dst. Ill-typed fields are left to their zero value and their paths returned.
func decode[T entity](doc core.Document, dst *T) ([]string, error) {
	fields := make(map[string]interface{}, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	// rolls may have been stored as numbers
	if roll, ok := fields["roll"].(float64); ok {
		fields["roll"] = strconv.FormatFloat(roll, 'f', -1, 64)
	}
	fields["id"] = doc.ID

	if eval, ok := any(dst).(*Evaluation); ok {
		return decodeEvaluation(fields, eval)
	}
	return decodeFields(fields, dst, "")
}

// decodeEvaluation decodes every score record on its own so that an ill-typed one loses nothing else.
func decodeEvaluation(fields map[string]interface{}, dst *Evaluation) ([]string, error) {
	scores, hasScores := fields["scores"]
	delete(fields, "scores")

	invalid, err := decodeFields(fields, dst, "")
	if err != nil || !hasScores || scores == nil {
		return invalid, err
	}

	records, ok := scores.(map[string]interface{})
	if !ok {
		return append(invalid, "scores"), nil
	}
	dst.Scores = make(map[string]*Score, len(records))
	for _, sid := range sortedKeys(records) {
		switch rec := records[sid].(type) {
		case nil:
			dst.Scores[sid] = nil
		case map[string]interface{}:
			score := new(Score)
			bad, err := decodeFields(rec, score, "scores."+sid+".")
			if err != nil {
				return invalid, err
			}
			invalid = append(invalid, bad...)
			dst.Scores[sid] = score
		default:
			invalid = append(invalid, "scores."+sid)
		}
	}
	return invalid, nil
}

// decodeFields decodes fields into dst. When a field does not fit, dst is decoded again field by field:
// the decoder stops at the first value its type refuses to unmarshal.
func decodeFields[T any](fields map[string]interface{}, dst *T, prefix string) ([]string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encoding fields")
	}
	if err = json.Unmarshal(b, dst); err == nil {
		return nil, nil
	}

	var zero T
	*dst = zero

	var invalid []string
	for _, k := range sortedKeys(fields) {
		b, err := json.Marshal(map[string]interface{}{k: fields[k]})
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s%s", prefix, k)
		}
		if err = json.Unmarshal(b, dst); err != nil {
			invalid = append(invalid, prefix+k)
		}
	}
	return invalid, nil
}

// decodeInto decodes a document the store just returned into one of the entities.
func decodeInto(doc core.Document, dst interface{}) error {
	var err error
	switch v := dst.(type) {
	case *Group:
		_, err = decode(doc, v)
	case *Student:
		_, err = decode(doc, v)
	case *Task:
		_, err = decode(doc, v)
	case *Evaluation:
		_, err = decode(doc, v)
	default:
		err = errors.Errorf("cannot decode into %T", dst)
	}
	return err
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeAll[T entity](kind string, docs []core.Document, logger core.Logger) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		invalid, err := decode(doc, &v)
		if err != nil {
			if logger != nil {
				logger.Warn(fmt.Sprintf("skipping %s %q: %v", kind, doc.ID, err), err)
			}
			continue
		}
		if len(invalid) > 0 && logger != nil {
			logger.Warn(fmt.Sprintf("%s %q: ignoring ill-typed %s", kind, doc.ID, strings.Join(invalid, ", ")))
		}
		out = append(out, v)
	}
	return out
}

// DecodeGroups decodes the documents of the groups collection, skipping undecodable ones.
func DecodeGroups(docs []core.Document, logger core.Logger) []Group {
	return decodeAll[Group]("group", docs, logger)
}

func DecodeStudents(docs []core.Document, logger core.Logger) []Student {
	return decodeAll[Student]("student", docs, logger)
}

func DecodeTasks(docs []core.Document, logger core.Logger) []Task {
	return decodeAll[Task]("task", docs, logger)
}

func DecodeEvaluations(docs []core.Document, logger core.Logger) []Evaluation {
	return decodeAll[Evaluation]("evaluation", docs, logger)
}

// toFields returns the JSON representation of v as document fields, without its id.
func toFields(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding fields")
	}
	var fields map[string]interface{}
	if err = json.Unmarshal(b, &fields); err != nil {
		return nil, errors.Wrap(err, "decoding fields")
	}
	delete(fields, "id")
	return fields, nil
}
