package permission

// Source is the origin of an account's effective permissions. It is a closed
// union: [Custom], [Template] or [Default].
type Source interface {
	// Permissions returns the set this source grants.
	Permissions() Set
	// Kind names the variant.
	Kind() SourceKind

	isSource()
}

// SourceKind identifies a [Source] variant.
type SourceKind string

const (
	SourceCustom   SourceKind = "custom"
	SourceTemplate SourceKind = "template"
	SourceDefault  SourceKind = "default"
)

// Custom is a per-account override. It fully replaces role-derived permissions.
type Custom struct{ Set Set }

// Template is the tenant's role template for the account's role.
type Template struct{ Set Set }

// Default is the built-in default for the role.
type Default struct{ Set Set }

func (c Custom) Permissions() Set   { return c.Set }
func (t Template) Permissions() Set { return t.Set }
func (d Default) Permissions() Set  { return d.Set }

func (Custom) Kind() SourceKind   { return SourceCustom }
func (Template) Kind() SourceKind { return SourceTemplate }
func (Default) Kind() SourceKind  { return SourceDefault }

func (Custom) isSource()   {}
func (Template) isSource() {}
func (Default) isSource()  {}

// Input is everything the pure resolution step needs.
type Input struct {
	Role string
	// Custom is nil when the account inherits from its role.
	Custom *Set
	// Template is nil when the tenant has no template for Role.
	Template *Set
}

// Select picks the winning source. The first available of custom, template
// and default wins; sources are never merged.
func Select(in Input, defaults *RoleManager) Source {
	if in.Custom != nil {
		return Custom{Set: *in.Custom}
	}
	if in.Template != nil {
		return Template{Set: *in.Template}
	}
	return Default{Set: defaults.Default(in.Role)}
}
