package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const maxChainDepth = 16

// PGDiagnostics are the server-side fields of a Postgres error.
type PGDiagnostics struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is what WriteError logs for a failed request.
type ErrorDump struct {
	Message string         `json:"message"`
	Code    Code           `json:"code,omitempty"`
	Chain   []string       `json:"chain,omitempty"`
	PG      *PGDiagnostics `json:"pg,omitempty"`
}

// Dump walks err, recording each layer, its typed code and, when either
// driver produced one, the Postgres diagnostics.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error(), PG: postgresDiagnostics(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for layer := err; layer != nil && len(d.Chain) < maxChainDepth; layer = stdErrors.Unwrap(layer) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", layer, layer))
	}
	return d
}

func postgresDiagnostics(err error) *PGDiagnostics {
	if pgxErr := (*pgconn.PgError)(nil); stdErrors.As(err, &pgxErr) {
		return &PGDiagnostics{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); stdErrors.As(err, &pqErr) {
		return &PGDiagnostics{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields flattens the dump for logger.WithFields. Empty diagnostics are left out.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.Message, "error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.PG == nil {
		return fields
	}
	for name, value := range map[string]string{
		"pg_code":       d.PG.SQLState,
		"pg_constraint": d.PG.Constraint,
		"pg_table":      d.PG.Table,
		"pg_column":     d.PG.Column,
		"pg_detail":     d.PG.Detail,
		"pg_message":    d.PG.Message,
	} {
		if value != "" {
			fields[name] = value
		}
	}
	return fields
}
