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

// SourceKey addresses one source element in the control plane. The three key
// types are distinct so a key of one kind can't be used to address another.
type SourceKey struct {
	name ElementName
}

// TransformKey addresses one transform element in the control plane.
type TransformKey struct {
	name ElementName
}

// OutputKey addresses one output element in the control plane.
type OutputKey struct {
	name ElementName
}

// Name returns the element name the key addresses.
func (k SourceKey) Name() ElementName { return k.name }

// Name returns the element name the key addresses.
func (k TransformKey) Name() ElementName { return k.name }

// Name returns the element name the key addresses.
func (k OutputKey) Name() ElementName { return k.name }

func (k SourceKey) String() string    { return k.name.String() }
func (k TransformKey) String() string { return k.name.String() }
func (k OutputKey) String() string    { return k.name.String() }
