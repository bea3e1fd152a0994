package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
)

// ExecuteQuery runs query against schema with no variables
func ExecuteQuery(query string, schema graphql.Schema) *graphql.Result {
	return ExecuteQueryWithVariables(context.Background(), query, schema, nil)
}

// ExecuteQueryWithVariables runs query with variables under ctx
func ExecuteQueryWithVariables(ctx context.Context, query string, schema graphql.Schema, variables map[string]any) *graphql.Result {
	return execute(ctx, schema, GraphQLRequest{Query: query, Variables: variables}, 0)
}

// execute runs req, refusing it first when maxDepth > 0 and the query nests
// deeper
func execute(ctx context.Context, schema graphql.Schema, req GraphQLRequest, maxDepth int) *graphql.Result {
	if maxDepth > 0 {
		if err := ValidateQueryDepth(req.Query, maxDepth); err != nil {
			return errorResult(err)
		}
	}
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}

func errorResult(err error) *graphql.Result {
	return &graphql.Result{Errors: []gqlerrors.FormattedError{gqlerrors.FormatError(err)}}
}
