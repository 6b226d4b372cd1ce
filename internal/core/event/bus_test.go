package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTickInOrder(t *testing.T) {
	b := NewBus()

	var got []string
	Subscribe(b, func(e TemplateRedefined) { got = append(got, "redef:"+e.Template) })
	Subscribe(b, func(e BehaviorMissing) { got = append(got, "missing:"+e.Template) })

	Emit(b, TemplateRedefined{Template: "A"})
	Emit(b, BehaviorMissing{Template: "B"})
	Emit(b, TemplateRedefined{Template: "C"})
	assert.Equal(t, 3, b.Pending())

	assert.Equal(t, 0, b.DispatchAll(), "nothing is readable before the swap")
	assert.Empty(t, got)

	b.SwapBuffers()
	assert.Equal(t, 3, b.DispatchAll())
	assert.Equal(t, []string{"redef:A", "missing:B", "redef:C"}, got)

	b.SwapBuffers()
	assert.Equal(t, 0, b.DispatchAll())
}

func TestEmitOnNilBusIsDropped(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { Emit(b, TemplateRedefined{Template: "x"}) })
}
