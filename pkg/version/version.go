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

// Package version holds the build version of the agent and the plugin API
// version tag validated at plugin load.
package version

var (
	// Version is the version of the build, set at build time.
	Version = "unknown"
	// Build is the git hash of the build, set at build time.
	Build = "unknown"
)

// APIVersion is the alumet-api version tag. Dynamic plugins built against a
// different tag are refused at load.
const APIVersion = "0.8"
