// Package dag orders a pipeline's nodes for execution. The sort is a Kahn
// walk with a fixed tie-break policy: whenever several nodes are ready at the
// same step, the one that appears first in the pipeline's node array wins.
// The same document therefore always produces the same order, which is what
// makes runs reproducible and their logs comparable.
package dag
