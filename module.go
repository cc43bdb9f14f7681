package scriptx

// =============================================================================
// MODULE BUILDER
// =============================================================================

type moduleExport struct {
	name  string
	value any // Referent, Callback, or any Go value Marshal accepts
}

// ModuleBuilder publishes a set of host values to scripts as one namespace
// object bound to a global name. None of the backends share a module
// system, so a module is an ordinary object.
//
//	_, err := scriptx.NewModuleBuilder("math").
//	    Export("PI", math.Pi).
//	    Function("add", add).
//	    Build(sc)
type ModuleBuilder struct {
	name    string
	exports []moduleExport
}

// NewModuleBuilder starts a module bound to the global name.
func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{name: name}
}

// Export adds value under name.
func (mb *ModuleBuilder) Export(name string, value any) *ModuleBuilder {
	mb.exports = append(mb.exports, moduleExport{name: name, value: value})
	return mb
}

// Function adds a host function.
func (mb *ModuleBuilder) Function(name string, cb Callback) *ModuleBuilder {
	return mb.Export(name, cb)
}

// ExportNames lists the export names in the order they were added.
func (mb *ModuleBuilder) ExportNames() []string {
	names := make([]string, len(mb.exports))
	for i, ex := range mb.exports {
		names[i] = ex.name
	}
	return names
}

func (mb *ModuleBuilder) validate() error {
	if mb.name == "" {
		return newError(KindConstruction, "build module", "module name cannot be empty")
	}
	seen := make(map[string]bool, len(mb.exports))
	for _, ex := range mb.exports {
		switch {
		case ex.name == "":
			return newError(KindConstruction, "build module", "export name cannot be empty")
		case seen[ex.name]:
			return newError(KindConstruction, "build module", "duplicate export name: %s", ex.name)
		}
		seen[ex.name] = true
	}
	return nil
}

// Build creates the namespace object and binds it as a global of the
// scope's engine. Nothing is bound when an export fails to convert. The
// returned Object is owned by sc.
func (mb *ModuleBuilder) Build(sc *EngineScope) (Object, error) {
	if err := mb.validate(); err != nil {
		return Object{}, err
	}
	ns, err := sc.NewObject()
	if err != nil {
		return Object{}, err
	}
	for _, ex := range mb.exports {
		if err := ns.export(sc, ex); err != nil {
			ns.Release()
			return Object{}, &Error{
				Kind:   KindConversion,
				Op:     "build module " + mb.name,
				Detail: "export " + ex.name,
				Cause:  err,
			}
		}
	}
	if err := sc.Set(mb.name, ns); err != nil {
		ns.Release()
		return Object{}, err
	}
	return ns, nil
}

func (o Object) export(sc *EngineScope, ex moduleExport) error {
	if r, ok := ex.value.(Referent); ok {
		return o.Set(ex.name, r)
	}
	v, err := sc.Marshal(ex.value)
	if err != nil {
		return err
	}
	defer v.Release()
	return o.Set(ex.name, v)
}
