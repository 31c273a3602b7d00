package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Signal is a signaled exception travelling up the Go call stack as an
// error. Exception is an instance of Error or one of its subclasses.
type Signal struct {
	Exception *Object
	Trace     []TraceEntry
}

// TraceEntry is one activation the signal unwound through.
type TraceEntry struct {
	Method string
	Line   int
}

func (s *Signal) Error() string {
	return DisplayString(s.Exception)
}

// Class returns the class of the signaled exception.
func (s *Signal) Class() *Class { return s.Exception.class }

// MessageText returns the exception's message, or "" if none was given.
func (s *Signal) MessageText() string {
	if msg, ok := s.Exception.Field("messageText"); ok && msg != nil {
		return DisplayString(msg)
	}
	return ""
}

// Where renders the first trace entry ("Eval class>>eval line 3").
func (s *Signal) Where() string {
	if len(s.Trace) == 0 {
		return ""
	}
	t := s.Trace[0]
	if t.Line > 0 {
		return fmt.Sprintf("%s line %d", t.Method, t.Line)
	}
	return t.Method
}

// StackTrace renders every trace entry, innermost first.
func (s *Signal) StackTrace() string {
	var sb strings.Builder
	for _, t := range s.Trace {
		fmt.Fprintf(&sb, "  at %s", t.Method)
		if t.Line > 0 {
			fmt.Fprintf(&sb, " (line %d)", t.Line)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// AsSignal extracts a Signal from an error chain.
func AsSignal(err error) (*Signal, bool) {
	var sig *Signal
	ok := errors.As(err, &sig)
	return sig, ok
}

// NewException instantiates an exception of class cls with a message.
func (rt *Runtime) NewException(cls *Class, msg string) *Object {
	obj := &Object{class: cls, fields: make([]Value, len(cls.InstVars))}
	if msg != "" {
		obj.SetField("messageText", msg)
	}
	return obj
}

// Signalf builds a Signal for an exception of class cls.
func (in *Interp) Signalf(cls *Class, format string, args ...any) error {
	return &Signal{Exception: in.rt.NewException(cls, fmt.Sprintf(format, args...))}
}

func (in *Interp) notUnderstood(recv Value, selector string) error {
	return in.Signalf(in.rt.MessageNotUnderstood, "%s does not understand #%s", PrintString(recv), selector)
}

// ---------------------------------------------------------------------------
// Error protocol
// ---------------------------------------------------------------------------

func (rt *Runtime) installErrorPrimitives() {
	e := rt.Error

	e.classPrim("new", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.rt.NewException(recv.(*Class), ""), nil
	})
	e.classPrim("signal", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, &Signal{Exception: in.rt.NewException(recv.(*Class), "")}
	})
	e.classPrim("signal:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, &Signal{Exception: in.rt.NewException(recv.(*Class), DisplayString(args[0]))}
	})

	e.prim("signal", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, &Signal{Exception: recv.(*Object)}
	})
	e.prim("signal:", func(in *Interp, recv Value, args []Value) (Value, error) {
		obj := recv.(*Object)
		obj.SetField("messageText", DisplayString(args[0]))
		return nil, &Signal{Exception: obj}
	})
	e.prim("messageText", func(in *Interp, recv Value, args []Value) (Value, error) {
		v, _ := recv.(*Object).Field("messageText")
		return v, nil
	})
	e.prim("messageText:", func(in *Interp, recv Value, args []Value) (Value, error) {
		recv.(*Object).SetField("messageText", args[0])
		return recv, nil
	})
	e.prim("description", func(in *Interp, recv Value, args []Value) (Value, error) {
		return DisplayString(recv), nil
	})
}

// onDo implements Block>>on:do:. The handler's value becomes the value of
// the protected block when the signal matches; anything else propagates.
func onDo(in *Interp, recv Value, args []Value) (Value, error) {
	body := recv.(*Block)
	cls, ok := args[0].(*Class)
	if !ok {
		return nil, in.Signalf(in.rt.TypeMismatch, "on:do: expects an exception class, got %s", PrintString(args[0]))
	}
	handler, ok := args[1].(*Block)
	if !ok {
		return nil, in.Signalf(in.rt.TypeMismatch, "on:do: expects a handler block, got %s", PrintString(args[1]))
	}

	v, err := in.CallBlock(body)
	if err == nil {
		return v, nil
	}
	sig, ok := err.(*Signal)
	if !ok || !sig.Exception.class.InheritsFrom(cls) {
		return nil, err
	}
	if handler.NumArgs() == 0 {
		return in.CallBlock(handler)
	}
	return in.CallBlock(handler, sig.Exception)
}

// ensure implements Block>>ensure:. The cleanup block always runs; an
// error from the protected block takes precedence over one from cleanup.
func ensure(in *Interp, recv Value, args []Value) (Value, error) {
	cleanup, ok := args[0].(*Block)
	if !ok {
		return nil, in.Signalf(in.rt.TypeMismatch, "ensure: expects a block, got %s", PrintString(args[0]))
	}
	v, err := in.CallBlock(recv.(*Block))
	if _, cerr := in.CallBlock(cleanup); cerr != nil && err == nil {
		return nil, cerr
	}
	return v, err
}
