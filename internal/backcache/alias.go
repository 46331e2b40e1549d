package backcache

import "github.com/rowcache/tablecache/internal/rangealgebra"

// Range is a local alias so the rest of the package reads naturally;
// it is exactly rangealgebra.Range.
type Range = rangealgebra.Range

// Invalid is rangealgebra.Invalid, re-exported for brevity.
var Invalid = rangealgebra.Invalid

// WindowOffset is the fixed pre-fetch margin around the visible
// window: the materialized Rows window always encloses
// RowsVisible.Expand(WindowOffset).
const WindowOffset = 50
