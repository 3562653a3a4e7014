package generator

import (
	"database/sql"
	"fmt"
	"strings"
)

// TypeMapper renders a column type for a CREATE TABLE statement.
// Implement this interface to customize type rendering.
type TypeMapper interface {
	// MapType renders a column type.
	// typeName is the catalog type name (e.g., "int", "nvarchar")
	// maxLength is the storage length in bytes, -1 for max
	// precision and scale are the numeric and temporal modifiers
	MapType(typeName string, maxLength, precision, scale sql.NullInt64) string
}

// SQLServerTypeMapper renders SQL Server column types in bracketed form.
// It supports custom type overrides via the CustomMappings field.
type SQLServerTypeMapper struct {
	// CustomMappings allows overriding default type rendering.
	// Keys are SQL Server type names (case-insensitive), values are rendered verbatim.
	CustomMappings map[string]string
}

// NewSQLServerTypeMapper creates a new TypeMapper with optional custom mappings.
// If customMappings is nil, only default rendering is used.
//
// Example:
//
//	mapper := generator.NewSQLServerTypeMapper(map[string]string{
//	    "timestamp": "[rowversion]",
//	})
func NewSQLServerTypeMapper(customMappings map[string]string) *SQLServerTypeMapper {
	return &SQLServerTypeMapper{CustomMappings: customMappings}
}

// MapType implements TypeMapper for SQL Server.
// It checks CustomMappings first, then falls back to default rendering.
func (m *SQLServerTypeMapper) MapType(typeName string, maxLength, precision, scale sql.NullInt64) string {
	if m.CustomMappings != nil {
		if mapped, ok := m.CustomMappings[strings.ToLower(typeName)]; ok {
			return mapped
		}
	}
	return FormatSQLServerType(typeName, maxLength, precision, scale)
}

// FormatSQLServerType renders a SQL Server type with its length, precision or scale.
// Unicode lengths are converted from bytes to characters.
func FormatSQLServerType(typeName string, maxLength, precision, scale sql.NullInt64) string {
	base := "[" + typeName + "]"
	switch strings.ToLower(typeName) {
	case "varchar", "char", "varbinary", "binary":
		return base + lengthSuffix(maxLength, 1)
	case "nvarchar", "nchar":
		return base + lengthSuffix(maxLength, 2)
	case "decimal", "numeric":
		if precision.Valid && scale.Valid {
			return fmt.Sprintf("%s(%d, %d)", base, precision.Int64, scale.Int64)
		}
		return base
	case "datetime2", "datetimeoffset", "time":
		if scale.Valid {
			return fmt.Sprintf("%s(%d)", base, scale.Int64)
		}
		return base
	case "float":
		if precision.Valid && precision.Int64 != 53 {
			return fmt.Sprintf("%s(%d)", base, precision.Int64)
		}
		return base
	default:
		return base
	}
}

func lengthSuffix(maxLength sql.NullInt64, bytesPerChar int64) string {
	if !maxLength.Valid {
		return ""
	}
	if maxLength.Int64 == -1 {
		return "(max)"
	}
	return fmt.Sprintf("(%d)", maxLength.Int64/bytesPerChar)
}
