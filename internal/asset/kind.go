package asset

// Kind is implemented by the zero-size marker types that tag a weapon. Any
// type satisfying Kind is a valid kind; there is no list to update.
type Kind interface {
	KindName() string
}

type (
	Axe   struct{}
	Sword struct{}
	Bow   struct{}
)

func (Axe) KindName() string   { return "axe" }
func (Sword) KindName() string { return "sword" }
func (Bow) KindName() string   { return "bow" }

func NameOf[K Kind]() string {
	var k K
	return k.KindName()
}
