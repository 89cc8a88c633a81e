package exec

import (
	"github.com/cuemby/streamharness/pkg/workservice"
)

// commitBuilder is the concrete executor.CommitBuilder bound to one
// work item's execution, addressed by (key, work token) per §4.5 step 2.
type commitBuilder struct {
	key       []byte
	workToken int64
	mutations [][]byte
	outputs   [][]byte
}

func newCommitBuilder(key []byte, workToken int64) *commitBuilder {
	return &commitBuilder{key: key, workToken: workToken}
}

func (b *commitBuilder) AddStateMutation(m []byte) { b.mutations = append(b.mutations, m) }
func (b *commitBuilder) AddOutputMessage(m []byte) { b.outputs = append(b.outputs, m) }

func (b *commitBuilder) Build() *workservice.WorkItemCommitRequest {
	return &workservice.WorkItemCommitRequest{
		Key:            b.key,
		WorkToken:      b.workToken,
		StateMutations: b.mutations,
		OutputMessages: b.outputs,
	}
}
