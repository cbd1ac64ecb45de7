// Package tag defines the dispatch tags that select among construction
// strategies taking the same number of arguments.
package tag

type (
	PointerTag     struct{}
	UniquePtrTag   struct{}
	MoveTag        struct{}
	SharedPtrTag   struct{}
	ObjectTag      struct{}
	RawObjectTag   struct{}
	MultirefTag    struct{}
	UnownedTag     struct{}
	NullPtrTag     struct{}
	TF4Tag         struct{}
	TF5Tag         struct{}
	BaseTag        struct{}
	InvalidBaseTag struct{}
	AliasTag       struct{}
	UnaliasableTag struct{}
)

var (
	Pointer     PointerTag
	UniquePtr   UniquePtrTag
	Move        MoveTag
	SharedPtr   SharedPtrTag
	Object      ObjectTag
	RawObject   RawObjectTag
	Multiref    MultirefTag
	Unowned     UnownedTag
	NullPtr     NullPtrTag
	TF4         TF4Tag
	TF5         TF5Tag
	Base        BaseTag
	InvalidBase InvalidBaseTag
	Alias       AliasTag
	Unaliasable UnaliasableTag
)

// ByName maps the script spelling of each tag to its value.
var ByName = map[string]any{
	"tag.pointer":      Pointer,
	"tag.unique_ptr":   UniquePtr,
	"tag.move":         Move,
	"tag.shared_ptr":   SharedPtr,
	"tag.object":       Object,
	"tag.raw_object":   RawObject,
	"tag.multiref":     Multiref,
	"tag.unowned":      Unowned,
	"tag.null_ptr":     NullPtr,
	"tag.TF4":          TF4,
	"tag.TF5":          TF5,
	"tag.base":         Base,
	"tag.invalid_base": InvalidBase,
	"tag.alias":        Alias,
	"tag.unaliasable":  Unaliasable,
}
