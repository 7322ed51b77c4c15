package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when filtering by a category the catalog
// does not define.
var ErrUnknownCategory = errors.New("unknown category")

// Catalog is the immutable set of categories, checks and fixes. Accessors
// return copies so callers cannot mutate a shared catalog.
type Catalog struct {
	categories []Category
	fixes      []Fix
	checkIndex map[string]int
}

type validator interface {
	validate() error
}

// New validates a catalog definition.
func New(categories []Category, fixes []Fix) (*Catalog, error) {
	c := &Catalog{checkIndex: map[string]int{}}
	seenCat := map[string]struct{}{}
	n := 0
	for _, cat := range categories {
		if cat.Name == "" {
			return nil, errors.New("category without name")
		}
		if _, dup := seenCat[cat.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Name)
		}
		seenCat[cat.Name] = struct{}{}

		owned := Category{Name: cat.Name, Description: cat.Description}
		for _, chk := range cat.Checks {
			if chk.Name == "" {
				return nil, fmt.Errorf("category %q: check without name", cat.Name)
			}
			if _, dup := c.checkIndex[chk.Name]; dup {
				return nil, fmt.Errorf("duplicate check %q", chk.Name)
			}
			if chk.Detector == nil {
				return nil, fmt.Errorf("check %q: missing detector", chk.Name)
			}
			if chk.Grader == nil {
				return nil, fmt.Errorf("check %q: missing grader", chk.Name)
			}
			if v, ok := chk.Grader.(validator); ok {
				if err := v.validate(); err != nil {
					return nil, fmt.Errorf("check %q: %w", chk.Name, err)
				}
			}
			chk.Category = cat.Name
			owned.Checks = append(owned.Checks, chk)
			c.checkIndex[chk.Name] = n
			n++
		}
		c.categories = append(c.categories, owned)
	}

	seenFix := map[string]struct{}{}
	for _, fx := range fixes {
		if err := c.validateFix(fx); err != nil {
			return nil, err
		}
		if _, dup := seenFix[fx.Name]; dup {
			return nil, fmt.Errorf("duplicate fix %q", fx.Name)
		}
		seenFix[fx.Name] = struct{}{}
		c.fixes = append(c.fixes, fx.clone())
	}
	return c, nil
}

func (c *Catalog) validateFix(fx Fix) error {
	if fx.Name == "" {
		return errors.New("fix without name")
	}
	if fx.Marker == "" {
		return fmt.Errorf("fix %q: missing marker", fx.Name)
	}
	if len(fx.Checks) == 0 {
		return fmt.Errorf("fix %q: names no checks", fx.Name)
	}
	for _, name := range fx.Checks {
		if _, ok := c.checkIndex[name]; !ok {
			return fmt.Errorf("fix %q: unknown check %q", fx.Name, name)
		}
	}
	switch fx.Kind {
	case FixInject:
		if fx.Anchor == "" {
			return fmt.Errorf("fix %q: inject without anchor", fx.Name)
		}
		if !strings.Contains(fx.Block, fx.Marker) {
			return fmt.Errorf("fix %q: block does not carry its marker", fx.Name)
		}
	case FixRewrite:
		if len(fx.Rewrites) == 0 {
			return fmt.Errorf("fix %q: rewrite without substitutions", fx.Name)
		}
		for i, rw := range fx.Rewrites {
			if rw.From == nil {
				return fmt.Errorf("fix %q: substitution %d has no pattern", fx.Name, i)
			}
		}
	default:
		return fmt.Errorf("fix %q: unknown kind %q", fx.Name, fx.Kind)
	}
	return nil
}

// Categories returns the categories in definition order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		cat.Checks = append([]Check(nil), cat.Checks...)
		out[i] = cat
	}
	return out
}

// CategoryNames returns the category names in definition order.
func (c *Catalog) CategoryNames() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Checks returns every check, flattened in definition order.
func (c *Catalog) Checks() []Check {
	var out []Check
	for _, cat := range c.categories {
		out = append(out, cat.Checks...)
	}
	return out
}

// Check looks up a check by name.
func (c *Catalog) Check(name string) (Check, bool) {
	for _, cat := range c.categories {
		for _, chk := range cat.Checks {
			if chk.Name == name {
				return chk, true
			}
		}
	}
	return Check{}, false
}

// Fixes returns the fixes in definition order.
func (c *Catalog) Fixes() []Fix {
	out := make([]Fix, len(c.fixes))
	for i, fx := range c.fixes {
		out[i] = fx.clone()
	}
	return out
}

// Fix looks up a fix by name.
func (c *Catalog) Fix(name string) (Fix, bool) {
	for _, fx := range c.fixes {
		if fx.Name == name {
			return fx.clone(), true
		}
	}
	return Fix{}, false
}

// Only narrows the catalog to one category. Fixes are kept when every check
// they name belongs to that category. An empty name returns c unchanged.
func (c *Catalog) Only(category string) (*Catalog, error) {
	if category == "" {
		return c, nil
	}
	var keep []Category
	for _, cat := range c.categories {
		if cat.Name == category {
			keep = append(keep, cat)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownCategory, category, strings.Join(c.CategoryNames(), ", "))
	}
	var fixes []Fix
	for _, fx := range c.fixes {
		inside := true
		for _, name := range fx.Checks {
			chk, _ := c.Check(name)
			if chk.Category != category {
				inside = false
				break
			}
		}
		if inside {
			fixes = append(fixes, fx)
		}
	}
	return New(keep, fixes)
}

// WithTargets returns a catalog whose fixes without explicit targets target
// names. Fixes that already declare targets keep them.
func (c *Catalog) WithTargets(names []string) *Catalog {
	fixes := c.Fixes()
	for i := range fixes {
		if len(fixes[i].Targets) == 0 {
			fixes[i].Targets = append([]string(nil), names...)
		}
	}
	out, err := New(c.Categories(), fixes)
	if err != nil {
		// c was already valid and targets are not validated.
		panic(err)
	}
	return out
}

// Retarget overrides the targets of the named fixes.
func (c *Catalog) Retarget(targets map[string][]string) (*Catalog, error) {
	fixes := c.Fixes()
	for name := range targets {
		if _, ok := c.Fix(name); !ok {
			return nil, fmt.Errorf("retarget: unknown fix %q", name)
		}
	}
	for i := range fixes {
		if t, ok := targets[fixes[i].Name]; ok {
			fixes[i].Targets = append([]string(nil), t...)
		}
	}
	return New(c.Categories(), fixes)
}
