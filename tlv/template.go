/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package tlv

// Template describes the expected shape of a tag tree. It decides which payload variant each decoded tag gets.
// Templates are immutable once constructed and may be shared.
type Template struct {
	typ      uint16
	kind     Kind
	children map[uint16]*Template
}

// NewTemplate returns a template for a tag of the given type and kind. Children are only meaningful for
// KindComposite.
func NewTemplate(typ uint16, kind Kind, children ...*Template) *Template {
	t := &Template{typ: typ, kind: kind}
	if len(children) > 0 {
		t.children = make(map[uint16]*Template, len(children))
		for _, c := range children {
			t.children[c.typ] = c
		}
	}
	return t
}

// Composite is shorthand for NewTemplate(typ, KindComposite, children...).
func Composite(typ uint16, children ...*Template) *Template {
	return NewTemplate(typ, KindComposite, children...)
}

// Type returns the tag type the template describes.
func (t *Template) Type() uint16 {
	if t == nil {
		return 0
	}
	return t.typ
}

// Kind returns the payload variant the template describes.
func (t *Template) Kind() Kind {
	if t == nil {
		return KindRaw
	}
	return t.kind
}

// Child returns the template of the nested tag type, or nil if the type is not known.
func (t *Template) Child(typ uint16) *Template {
	if t == nil {
		return nil
	}
	return t.children[typ]
}

// Lookup is a set of templates for top-level tags, keyed by type.
type Lookup map[uint16]*Template

// NewLookup returns a Lookup of the given templates.
func NewLookup(templates ...*Template) Lookup {
	l := make(Lookup, len(templates))
	for _, t := range templates {
		l[t.typ] = t
	}
	return l
}
