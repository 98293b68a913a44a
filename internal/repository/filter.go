package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// FilterField перечисляет поля, по которым можно фильтровать административные списки.
type FilterField int

const (
	FilterWithdrawalStatus FilterField = iota + 1
	FilterWithdrawalUser
	FilterUserRole
	FilterUserSearch
	FilterDrawStatus
)

func (f FilterField) String() string {
	switch f {
	case FilterWithdrawalStatus:
		return "status"
	case FilterWithdrawalUser:
		return "userId"
	case FilterUserRole:
		return "role"
	case FilterUserSearch:
		return "search"
	case FilterDrawStatus:
		return "drawStatus"
	default:
		return "unknown(" + strconv.Itoa(int(f)) + ")"
	}
}

// Filter задаёт одно условие отбора.
type Filter struct {
	Field FilterField
	Value string
}

// ErrUnsupportedFilter возвращается, если поле фильтра не применимо к списку.
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	// ErrInvalidFilter возвращается, если значение фильтра не проходит проверку.
	ErrInvalidFilter = errors.New("invalid filter value")
)

// clauseFunc строит условие для плейсхолдера $n и возвращает его аргумент.
type clauseFunc func(n int, value string) (string, any, error)

var withdrawalFilters = map[FilterField]clauseFunc{
	FilterWithdrawalStatus: func(n int, value string) (string, any, error) {
		switch model.WithdrawalStatus(value) {
		case model.WithdrawalStatusPending, model.WithdrawalStatusCompleted, model.WithdrawalStatusRejected:
			return fmt.Sprintf("w.status = $%d", n), value, nil
		}
		return "", nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, value)
	},
	FilterWithdrawalUser: func(n int, value string) (string, any, error) {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return "", nil, fmt.Errorf("%w: user id %q", ErrInvalidFilter, value)
		}
		return fmt.Sprintf("w.user_id = $%d", n), id, nil
	},
}

var userFilters = map[FilterField]clauseFunc{
	FilterUserRole: func(n int, value string) (string, any, error) {
		switch model.Role(value) {
		case model.RoleUser, model.RoleAdmin:
			return fmt.Sprintf("u.role = $%d", n), value, nil
		}
		return "", nil, fmt.Errorf("%w: role %q", ErrInvalidFilter, value)
	},
	FilterUserSearch: func(n int, value string) (string, any, error) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil, fmt.Errorf("%w: empty search", ErrInvalidFilter)
		}
		return fmt.Sprintf("u.username ILIKE $%d", n), "%" + escapeLike(value) + "%", nil
	},
}

var drawFilters = map[FilterField]clauseFunc{
	FilterDrawStatus: func(n int, value string) (string, any, error) {
		switch model.DrawStatus(value) {
		case model.DrawStatusActive, model.DrawStatusCompleted, model.DrawStatusCancelled:
			return fmt.Sprintf("status = $%d", n), value, nil
		}
		return "", nil, fmt.Errorf("%w: draw status %q", ErrInvalidFilter, value)
	},
}

// buildWhere собирает WHERE из фильтров. Условия объединяются через AND.
func buildWhere(filters []Filter, allowed map[FilterField]clauseFunc) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		fn, ok := allowed[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f.Field)
		}
		clause, arg, err := fn(len(args)+1, f.Value)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
