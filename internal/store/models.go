package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/eraatools/ucprep/internal/dataset"
)

// RunStatus tracks what has been produced for a run so far.
type RunStatus string

const (
	RunStatusPrepared RunStatus = "prepared"
	RunStatusAnalyzed RunStatus = "analyzed"
	RunStatusFailed   RunStatus = "failed"
)

// StringList stores a slice of strings in SQLite as JSON.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan StringList")
	}

	return json.Unmarshal(bytes, s)
}

// Run is one prepared model-input build: the selection it was made for and
// its lifecycle status.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	RunID        string     `bun:"run_id,unique,notnull" json:"run_id"`
	Phase        string     `bun:"phase,notnull" json:"phase"`
	TargetYear   int        `bun:"target_year,notnull" json:"target_year"`
	ClimaticYear int        `bun:"climatic_year,notnull" json:"climatic_year"`
	StressTest   bool       `bun:"stress_test,default:false" json:"stress_test"`
	Countries    StringList `bun:"countries,type:json,notnull" json:"countries"`
	PeriodStart  time.Time  `bun:"period_start,notnull" json:"period_start"`
	PeriodEnd    time.Time  `bun:"period_end,notnull" json:"period_end"`
	Status       RunStatus  `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Units   []*GenerationUnit `bun:"rel:has-many,join:id=run_id" json:"units,omitempty"`
	Exports []*Export         `bun:"rel:has-many,join:id=run_id" json:"exports,omitempty"`
}

// BeforeUpdate updates the timestamp on modifications.
func (r *Run) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	r.UpdatedAt = time.Now()
	return nil
}

// Validate checks that required run fields are present.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return errors.New("run ID is required")
	}
	if r.Phase == "" {
		return errors.New("phase is required")
	}
	if r.TargetYear <= 0 {
		return errors.New("target year must be positive")
	}
	if r.ClimaticYear <= 0 {
		return errors.New("climatic year must be positive")
	}
	if len(r.Countries) == 0 {
		return errors.New("at least one country is required")
	}
	if !r.PeriodEnd.After(r.PeriodStart) {
		return errors.New("period end must be after period start")
	}
	return nil
}

// GenerationUnit is one derived generator of a run, with its full parameter
// set serialized as JSON.
type GenerationUnit struct {
	bun.BaseModel `bun:"table:generation_units,alias:gu"`

	ID          int64    `bun:"id,pk,autoincrement" json:"id"`
	RunID       int64    `bun:"run_id,notnull,unique:run_unit" json:"run_id"`
	Name        string   `bun:"name,notnull,unique:run_unit" json:"name"`
	Country     string   `bun:"country,notnull" json:"country"`
	AggProdType string   `bun:"agg_prod_type,notnull" json:"agg_prod_type"`
	PNom        *float64 `bun:"p_nom" json:"p_nom,omitempty"`
	Committable *bool    `bun:"committable" json:"committable,omitempty"`
	// full parameter set, as handed to the optimizer framework
	Params    string    `bun:"params,type:json,notnull" json:"params"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Validate checks that required unit fields are present.
func (u *GenerationUnit) Validate() error {
	if u.Name == "" {
		return errors.New("unit name is required")
	}
	if u.Country == "" {
		return errors.New("country is required")
	}
	if u.AggProdType == "" {
		return errors.New("aggregate production type is required")
	}
	if u.Params == "" {
		return errors.New("unit params are required")
	}
	return nil
}

// NewGenerationUnit serializes one derived unit for persistence.
func NewGenerationUnit(country string, data *dataset.GenerationUnitData) (*GenerationUnit, error) {
	params, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("serialize unit %s: %w", data.Name, err)
	}
	return &GenerationUnit{
		Name:        data.Name,
		Country:     country,
		AggProdType: data.Type,
		PNom:        data.PNom,
		Committable: data.Committable,
		Params:      string(params),
	}, nil
}

// Export records one produced analysis artifact (CSV export or figure).
type Export struct {
	bun.BaseModel `bun:"table:exports,alias:e"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	RunID     int64     `bun:"run_id,notnull" json:"run_id"`
	Kind      string    `bun:"kind,notnull" json:"kind"`
	DataType  string    `bun:"data_type,notnull" json:"data_type"`
	FileName  string    `bun:"file_name,notnull" json:"file_name"`
	NCases    int       `bun:"n_cases,default:0" json:"n_cases"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Validate checks that required export fields are present.
func (e *Export) Validate() error {
	if e.Kind == "" {
		return errors.New("export kind is required")
	}
	if e.FileName == "" {
		return errors.New("file name is required")
	}
	return nil
}
