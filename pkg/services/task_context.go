package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// TaskContextFunc opens the database scope a background task runs in.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type TaskContextFunc func(ctx context.Context, ref workqueue.ResourceRef) (context.Context, func(), error)

// NewTaskContextFunc scopes tasks to the user that queued them, so created_by
// and updated_by columns record that user. Tasks without an owner get a system scope.
// LLM calls made with the returned context are labelled with the task resource.
func NewTaskContextFunc(scopes database.ScopeProvider) TaskContextFunc {
	return func(ctx context.Context, ref workqueue.ResourceRef) (context.Context, func(), error) {
		owner, err := uuid.Parse(ref.OwnerID)
		if err != nil {
			owner = uuid.Nil
		}
		scoped, cleanup, err := scopes.WithScope(ctx, owner)
		if err != nil {
			return nil, nil, err
		}
		scoped = llm.WithLabels(scoped, map[string]string{
			"resource_type": ref.Type,
			"resource_id":   ref.ID,
			"user_id":       ref.OwnerID,
		})
		return scoped, cleanup, nil
	}
}

// resourceRef builds the ResourceRef of a task working on id for owner.
func resourceRef(kind string, id uuid.UUID, owner *uuid.UUID) workqueue.ResourceRef {
	ref := workqueue.ResourceRef{Type: kind, ID: id.String()}
	if owner != nil {
		ref.OwnerID = owner.String()
	}
	return ref
}

// Resource types reported in task snapshots.
const (
	ResourceCompany    = "company"
	ResourceKnowledge  = "product_knowledge"
	ResourceAnalysis   = "analysis"
	ResourceTalkScript = "talk_script"
	ResourceExport     = "export"
)
