package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

// ImportXLSX reads a catalog from the first sheet of a spreadsheet. Column
// A holds the question id, column B the topic; a header row is skipped when
// the first cell says "id". Rows with a blank id get a generated one, so
// sheets exported from ad-hoc sources still import cleanly.
func ImportXLSX(path string) (*Repository, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("catalog: xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}

	questions := make([]entities.Question, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if i == 0 && strings.EqualFold(id, "id") {
			continue
		}
		topic := ""
		if len(row) > 1 {
			topic = strings.TrimSpace(row[1])
		}
		if id == "" && topic == "" {
			continue
		}
		if id == "" {
			id = uuid.NewString()
		}
		questions = append(questions, entities.Question{ID: id, Topic: topic})
	}

	if len(questions) == 0 {
		return nil, errors.New("catalog: xlsx has no questions")
	}
	return newRepository(questions)
}
