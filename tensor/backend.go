// Copyright 2025 The Trellis Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// Backend is the interface compute backends implement.
//
// All operations take and return RawTensor values and allocate fresh
// outputs; inputs are never modified. The CPU implementation ships in
// the backend/cpu package; external packages may provide additional
// implementations (GPU, accelerator) against this interface.
type Backend = tensor.Backend
