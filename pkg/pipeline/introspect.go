// Copyright 2025 The Alumet Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"encoding/json"
	"net/http"
)

// introspectElement is the JSON rendering of one element in introspection
// replies.
type introspectElement struct {
	Plugin  string `json:"plugin"`
	Kind    string `json:"kind"`
	Element string `json:"element"`
	State   string `json:"state"`
	// PollEWMASeconds is the moving average poll duration, sources only.
	PollEWMASeconds *float64 `json:"pollEwmaSeconds,omitempty"`
}

// RegisterIntrospection hooks the pipeline's introspection handlers into the
// given HTTP mux. The endpoint answers element listings, optionally filtered
// with the same glob patterns the control plane uses.
func RegisterIntrospection(mux *http.ServeMux, p *Pipeline) {
	mux.HandleFunc("/introspect/elements", func(w http.ResponseWriter, r *http.Request) {
		pattern := r.URL.Query().Get("pattern")
		names := p.listElements(pattern)

		elements := make([]introspectElement, 0, len(names))
		p.mu.Lock()
		entries := make([]*elementEntry, 0, len(names))
		for _, name := range names {
			entries = append(entries, p.elements[name])
		}
		p.mu.Unlock()

		for i, name := range names {
			if entries[i] == nil {
				// The element went away between listing and lookup.
				continue
			}
			el := introspectElement{
				Plugin:  name.Plugin,
				Kind:    name.Kind.String(),
				Element: name.Element,
				State:   entries[i].state.get().String(),
			}
			if name.Kind == SourceKind {
				if ewma, ok := p.stats.pollEWMA(name); ok {
					el.PollEWMASeconds = &ewma
				}
			}
			elements = append(elements, el)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(elements); err != nil {
			p.Error("introspection reply failed: %v", err)
		}
	})
}
