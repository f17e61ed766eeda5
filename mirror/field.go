package mirror

import (
	"context"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

// FieldAccessor reads and writes one host field, converting values in
// both directions.
type FieldAccessor struct {
	mirror *Mirror
	owner  *MirroredType
	field  *host.Field
}

var _ dynamic.DataDescriptor = (*FieldAccessor)(nil)

func (*FieldAccessor) Type() *dynamic.Type { return dynamic.ObjectType }

// Name returns the field name.
func (f *FieldAccessor) Name() string { return f.field.Name }

// Field returns the host field.
func (f *FieldAccessor) Field() *host.Field { return f.field }

// Get reads the field. Instance fields read through the type return the
// accessor itself.
func (f *FieldAccessor) Get(ctx context.Context, self dynamic.Object, _ *dynamic.Type) (dynamic.Object, error) {
	var recv *host.Object
	if !f.field.Static {
		if self == nil {
			return f, nil
		}
		o, err := f.receiver(ctx, self)
		if err != nil {
			return nil, err
		}
		recv = o
	}
	v, err := host.GetField(f.field, recv)
	if err != nil {
		return nil, f.mirror.raise(ctx, err)
	}
	out, err := f.mirror.conv.ToDynamic(ctx, v)
	if err != nil {
		return nil, f.mirror.raise(ctx, err)
	}
	return out, nil
}

// Set converts v to the field type and writes it.
func (f *FieldAccessor) Set(ctx context.Context, self dynamic.Object, v dynamic.Object) error {
	var recv *host.Object
	if !f.field.Static {
		if self == nil {
			return dynamic.Raise(dynamic.AttributeError, "instance field '%s' of '%s' needs an instance",
				f.field.Name, f.owner.Name())
		}
		o, err := f.receiver(ctx, self)
		if err != nil {
			return err
		}
		recv = o
	}
	hv, err := f.mirror.conv.ToHost(ctx, v, f.field.Type)
	if err != nil {
		return f.mirror.raise(ctx, err)
	}
	if err := host.SetField(f.field, recv, hv); err != nil {
		return f.mirror.raise(ctx, err)
	}
	return nil
}

func (f *FieldAccessor) receiver(ctx context.Context, self dynamic.Object) (*host.Object, error) {
	inst, ok := self.(*Instance)
	if !ok || inst.mirror != f.mirror {
		return nil, dynamic.Raise(dynamic.TypeError, "field '%s' of '%s' needs a host object, got '%s'",
			f.field.Name, f.owner.Name(), dynamic.TypeName(self))
	}
	o, err := inst.Object()
	if err != nil {
		return nil, f.mirror.raise(ctx, err)
	}
	return o, nil
}

func (f *FieldAccessor) String() string {
	return "<host field " + f.field.String() + ">"
}
