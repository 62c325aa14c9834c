package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// submissionDataValue serializes form data for a jsonb column. Nil maps are
// stored as SQL NULL rather than the string "null".
func submissionDataValue(data models.SubmissionData) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission data: %w", err)
	}
	return raw, nil
}

func scanSubmissionData(raw []byte, dst *models.SubmissionData) error {
	if len(raw) == 0 {
		*dst = nil
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal submission data: %w", err)
	}
	return nil
}
