package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error codes for the gateway taxonomy. The code travels to the client
// inside "error" envelopes as the reason code.
const (
	CodeAuth              = 1101 // handshake failure, fatal to the connection
	CodeValidation        = 1201 // malformed inbound event, connection stays open
	CodeDeliveryMiss      = 1301 // destination gone/full, dropped and logged only
	CodeRegistryInvariant = 1401 // disallowed registry mutation (e.g. leave personal room)
)

var (
	ErrAuth              = NewCodeError(CodeAuth, "auth failed")
	ErrValidation        = NewCodeError(CodeValidation, "invalid event")
	ErrDeliveryMiss      = NewCodeError(CodeDeliveryMiss, "delivery miss")
	ErrRegistryInvariant = NewCodeError(CodeRegistryInvariant, "registry invariant")
)

type CodeErrorI interface {
	ECode() int
	EMsg() string
	error
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) ECode() int   { return e.Code }
func (e *CodeError) EMsg() string { return e.Msg }

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

// WithDetail returns a copy carrying extra detail text.
func (e *CodeError) WithDetail(detail string) *CodeError {
	ret := e.clone()
	if ret.Detail == "" {
		ret.Detail = detail
	} else {
		ret.Detail += ", " + detail
	}
	return ret
}

// WrapMsg returns a copy with a formatted kv detail appended.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if ret.Detail == "" {
			ret.Detail = detail
		} else {
			ret.Detail += ", " + detail
		}
	}
	return ret
}

// Is matches by code so sentinel comparison survives WithDetail/WrapMsg copies.
func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		return false
	}
	return e.Code == codeErr.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// CodeOf extracts the reason code from err, or CodeValidation if none.
func CodeOf(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeValidation
}

func New(s string) error { return errors.New(s) }

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i > 0 || msg != "" {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%v=", kv[i])
		if i+1 < len(kv) {
			fmt.Fprintf(&sb, "%v", kv[i+1])
		}
	}
	return sb.String()
}
