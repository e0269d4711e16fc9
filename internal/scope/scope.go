// Package scope implements the parent-pointer variable scope chain
// described in spec.md §3: a stack in practice, a tree in principle.
package scope

// Scope is a single frame in the chain. The root frame holds language
// constants (HEX, HEXLOWER, HEXUPPER); child frames are created per run
// via Child and dropped when the run completes.
type Scope struct {
	parent   *Scope
	vars     map[string]string
	exported map[string]bool
	private  map[string]bool
}

// Root constructs the root frame, pre-populated with the language
// constants named in spec.md §9.
func Root() *Scope {
	s := &Scope{
		vars:     map[string]string{},
		exported: map[string]bool{},
		private:  map[string]bool{},
	}
	s.vars["HEX"] = "0123456789abcdef"
	s.vars["HEXLOWER"] = "0123456789abcdef"
	s.vars["HEXUPPER"] = "0123456789ABCDEF"
	return s
}

// Child creates a new frame whose lookups fall back to s.
func (s *Scope) Child() *Scope {
	return &Scope{
		parent:   s,
		vars:     map[string]string{},
		exported: map[string]bool{},
		private:  map[string]bool{},
	}
}

// Bind memoizes name -> value in this frame.
func (s *Scope) Bind(name, value string) {
	s.vars[name] = value
}

// BindExported memoizes name -> value in this frame and marks it for
// inclusion in the child-process environment.
func (s *Scope) BindExported(name, value string) {
	s.Bind(name, value)
	s.exported[name] = true
}

// Unexport removes name from the exported set at this frame, without
// removing its binding. Matches original `just`'s `unexport` directive.
func (s *Scope) Unexport(name string) {
	delete(s.exported, name)
}

// Lookup walks from leaf to root and returns the first binding found.
func (s *Scope) Lookup(name string) (string, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

// IsExported reports whether the nearest frame (leaf first) that binds
// name marks it exported. A closer frame that binds name without
// exporting it, or has Unexported it, hides an export further up.
func (s *Scope) IsExported(name string) bool {
	for f := s; f != nil; f = f.parent {
		if _, bound := f.vars[name]; bound {
			if f.exported[name] {
				return true
			}
			// An explicit unexport at the frame owning the binding wins.
			return false
		}
	}
	return false
}

// Exported returns every name this chain currently marks for export,
// leaf frames shadowing root frames.
func (s *Scope) Exported() map[string]string {
	out := map[string]string{}
	frames := []*Scope{}
	for f := s; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		for name, v := range f.vars {
			if f.exported[name] {
				out[name] = v
			} else {
				delete(out, name)
			}
		}
	}
	return out
}
