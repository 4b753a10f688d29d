package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/adampassword/neorest/pkg/rest"
)

// batchJob is one request within a /batch submission. Jobs may reference the
// outputs of earlier jobs in the same batch with {id} placeholders.
type batchJob struct {
	Method string `json:"method"`
	To     string `json:"to"`
	Body   any    `json:"body,omitempty"`
	ID     int    `json:"id"`
}

// WriteBatch accumulates write jobs for single-round-trip submission.
// Relationship jobs may address nodes created earlier in the same batch by
// their zero-based entity index.
type WriteBatch struct {
	g    *Graph
	jobs []batchJob

	// entityJobs maps visible entity positions to job IDs; bookkeeping jobs
	// such as label assignments do not surface in the output.
	entityJobs []int
	// pendingLabels carries labels to apply locally to created nodes, keyed
	// by entity position.
	pendingLabels map[int][]string
}

// NewWriteBatch creates an empty batch for the given graph.
func NewWriteBatch(g *Graph) *WriteBatch {
	return &WriteBatch{g: g, pendingLabels: map[int][]string{}}
}

// Len returns the number of visible entities queued.
func (b *WriteBatch) Len() int { return len(b.entityJobs) }

func (b *WriteBatch) appendJob(method, to string, body any, visible bool) int {
	id := len(b.jobs)
	b.jobs = append(b.jobs, batchJob{Method: method, To: to, Body: body, ID: id})
	if visible {
		b.entityJobs = append(b.entityJobs, id)
	}
	return id
}

// Create queues creation of one node or relationship. Accepted notations
// follow Graph.Create. Already bound entities cannot be created again.
func (b *WriteBatch) Create(entity any) error {
	switch arg := entity.(type) {
	case map[string]any:
		node, err := CastNode(arg)
		if err != nil {
			return err
		}
		return b.createNode(node.(*Node))
	case *Node:
		return b.createNode(arg)
	case *Relationship:
		return b.createRelationship(arg)
	case []any, [3]any, [4]any:
		rel, err := CastRelationship(arg)
		if err != nil {
			return err
		}
		return b.createRelationship(rel)
	default:
		return fmt.Errorf("%w %T to creatable entity", ErrInvalidCast, entity)
	}
}

func (b *WriteBatch) createNode(node *Node) error {
	if node.Bound() {
		return fmt.Errorf("node %s is already bound", node.URI())
	}
	position := len(b.entityJobs)
	id := b.appendJob("POST", "node", node.Props().Map(), true)
	if labels := node.LabelSet().Values(); len(labels) > 0 {
		b.appendJob("PUT", fmt.Sprintf("{%d}/labels", id), labels, false)
		b.pendingLabels[position] = labels
	}
	return nil
}

func (b *WriteBatch) createRelationship(rel *Relationship) error {
	if rel.Bound() {
		return fmt.Errorf("relationship %s is already bound", rel.URI())
	}
	startRef, err := b.nodeJobRef(rel.StartNode())
	if err != nil {
		return err
	}
	endRef, err := b.nodeBodyRef(rel.EndNode())
	if err != nil {
		return err
	}
	body := map[string]any{"to": endRef, "type": rel.Type()}
	if rel.Props().Len() > 0 {
		body["data"] = rel.Props().Map()
	}
	b.appendJob("POST", startRef+"/relationships", body, true)
	return nil
}

// nodeJobRef renders a node reference for a job's "to" field: a relative URI
// for bound nodes, an {id} placeholder for in-batch pointers.
func (b *WriteBatch) nodeJobRef(ref NodeRef) (string, error) {
	switch node := ref.(type) {
	case *Node:
		if node == nil || !node.Bound() {
			return "", errors.New("relationship end points must be bound or reference batch entities")
		}
		return b.g.relativeURI(node.URI())
	case *NodePointer:
		jobID, err := b.pointerJob(node)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("{%d}", jobID), nil
	default:
		return "", errors.New("relationship end points must be bound or reference batch entities")
	}
}

// nodeBodyRef renders a node reference for a job body: an absolute URI for
// bound nodes, an {id} placeholder for in-batch pointers.
func (b *WriteBatch) nodeBodyRef(ref NodeRef) (string, error) {
	switch node := ref.(type) {
	case *Node:
		if node == nil || !node.Bound() {
			return "", errors.New("relationship end points must be bound or reference batch entities")
		}
		return node.URI(), nil
	case *NodePointer:
		jobID, err := b.pointerJob(node)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("{%d}", jobID), nil
	default:
		return "", errors.New("relationship end points must be bound or reference batch entities")
	}
}

func (b *WriteBatch) pointerJob(ptr *NodePointer) (int, error) {
	if ptr.Address < 0 || ptr.Address >= len(b.entityJobs) {
		return 0, fmt.Errorf("batch pointer %v references no earlier entity", ptr)
	}
	return b.entityJobs[ptr.Address], nil
}

// Delete queues removal of a bound node or relationship. Relationships must
// be queued before the nodes they connect.
func (b *WriteBatch) Delete(entity any) error {
	uri, err := b.entityURI(entity)
	if err != nil {
		return err
	}
	b.appendJob("DELETE", uri, nil, true)
	return nil
}

// GetProperties queues a fetch of a bound entity's property map.
func (b *WriteBatch) GetProperties(entity any) error {
	uri, err := b.entityURI(entity)
	if err != nil {
		return err
	}
	b.appendJob("GET", uri+"/properties", nil, true)
	return nil
}

func (b *WriteBatch) entityURI(entity any) (string, error) {
	switch arg := entity.(type) {
	case *Node:
		if !arg.Bound() {
			return "", ErrUnbound
		}
		return b.g.relativeURI(arg.URI())
	case *Relationship:
		if !arg.Bound() {
			return "", ErrUnbound
		}
		return b.g.relativeURI(arg.URI())
	case *Rel:
		if !arg.Bound() {
			return "", ErrUnbound
		}
		return b.g.relativeURI(arg.URI())
	default:
		return "", fmt.Errorf("%w %T to batch entity", ErrInvalidCast, entity)
	}
}

// AppendCypher queues a Cypher statement as a batch job.
func (b *WriteBatch) AppendCypher(statement string, params map[string]any) {
	if params == nil {
		params = map[string]any{}
	}
	b.appendJob("POST", "cypher", map[string]any{"query": statement, "params": params}, true)
}

// Run submits the batch and discards its outputs.
func (b *WriteBatch) Run(ctx context.Context) error {
	_, err := b.submit(ctx, false)
	return err
}

// Submit sends the batch in one request and returns the hydrated outcome of
// each visible entity job, in input order.
func (b *WriteBatch) Submit(ctx context.Context) ([]any, error) {
	return b.submit(ctx, true)
}

func (b *WriteBatch) submit(ctx context.Context, hydrate bool) ([]any, error) {
	if len(b.jobs) == 0 {
		return nil, nil
	}
	uri, err := b.g.metadataURI(ctx, "batch")
	if err != nil {
		return nil, err
	}
	res, err := rest.NewResource(uri)
	if err != nil {
		return nil, err
	}
	rs, err := res.Post(ctx, b.jobs)
	if err != nil {
		if exc := rest.CauseException(err); exc != nil {
			return nil, newBatchError(exc)
		}
		return nil, err
	}

	items, ok := rs.Content.([]any)
	if !ok {
		return nil, fmt.Errorf("batch response is %T, not a list", rs.Content)
	}
	bodies := make(map[int]any, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, err := asInt64(entry["id"])
		if err != nil {
			continue
		}
		bodies[int(id)] = entry["body"]
	}

	out := make([]any, len(b.entityJobs))
	for position, jobID := range b.entityJobs {
		body := bodies[jobID]
		if !hydrate {
			out[position] = body
			continue
		}
		hydrated, err := b.g.Hydrate(body)
		if err != nil {
			var batchErr *BatchError
			if errors.As(err, &batchErr) {
				batchErr.JobID = jobID
			}
			return nil, err
		}
		if node, ok := hydrated.(*Node); ok {
			if labels, pending := b.pendingLabels[position]; pending {
				node.LabelSet().Clear()
				node.LabelSet().Update(labels...)
				node.staleLabels = false
			}
		}
		out[position] = hydrated
	}
	return out, nil
}
