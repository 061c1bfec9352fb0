//go:build integration

package grapht

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var neo4jEndpoint *Neo4jEndpoint

// TestMain starts one Neo4j container shared by every integration test.
func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5",
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/integration",
		},
		WaitingFor: wait.ForLog("Started.").WithStartupTimeout(180 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to start container: %v", err))
	}

	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "7687")
	if err != nil {
		panic(err)
	}

	neo4jEndpoint = NewNeo4jEndpoint(host, uint16(port.Int()), "neo4j", "integration")

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}

func newIntegrationEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), testConfig(t), neo4jEndpoint,
		WithValidators(map[string]ValidatorFunc{"NonEmpty": nonEmptyValidator}),
		WithVersion("integration"))
	require.NoError(t, err)
	t.Cleanup(func() {
		// Each test starts from an empty graph.
		result := engine.Execute(context.Background(), Request{Query: `mutation {
			UserDelete(input: {match: {}, delete: {force: true}})
			ProjectDelete(input: {match: {}, delete: {force: true}})
			FeatureDelete(input: {match: {}, delete: {force: true}})
			BugDelete(input: {match: {}, delete: {force: true}})
		}`})
		if len(result.Errors) > 0 {
			t.Logf("cleanup errors: %v", result.Errors)
		}
		engine.Close(context.Background())
	})
	return engine
}

func TestIntegrationCreateAndReadBack(t *testing.T) {
	engine := newIntegrationEngine(t)

	data := execute(t, engine, `mutation {
		ProjectCreate(input: {name: "TodoApp", description: "TODO list"}) { id name description }
	}`, nil)
	created := data["ProjectCreate"].(map[string]any)
	require.NotEmpty(t, created["id"])

	data = execute(t, engine, fmt.Sprintf(`{
		Project(input: {id: {EQ: "%s"}}) { id name description }
	}`, created["id"]), nil)
	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "TodoApp", projects[0].(map[string]any)["name"])
	assert.Equal(t, "TODO list", projects[0].(map[string]any)["description"])
}

func TestIntegrationNestedCreateAndTraversal(t *testing.T) {
	engine := newIntegrationEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {props: {since: "2024"}, dst: {User: {NEW: {name: "Alice"}}}},
			issues: [
				{dst: {Feature: {NEW: {title: "f1"}}}},
				{dst: {Bug: {NEW: {title: "b1", severity: 3}}}}
			]
		}) { id }
	}`, nil)

	data := execute(t, engine, `{
		Project(input: {name: "P"}) {
			owner {
				props { since }
				dst { ... on User { name } }
			}
			issues {
				dst {
					... on Feature { title }
					... on Bug { title severity }
				}
			}
		}
	}`, nil)

	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	project := projects[0].(map[string]any)
	owner := project["owner"].(map[string]any)
	assert.Equal(t, map[string]any{"since": "2024"}, owner["props"])
	assert.Equal(t, map[string]any{"name": "Alice"}, owner["dst"])
	assert.Len(t, project["issues"].([]any), 2)
}

func TestIntegrationSingleRelDuplicateRejected(t *testing.T) {
	engine := newIntegrationEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {name: "P", owner: {dst: {User: {NEW: {name: "Alice"}}}}}) { id }
	}`, nil)

	msg := executeExpectError(t, engine, `mutation {
		ProjectOwnerCreate(input: {
			match: {name: "P"},
			create: {dst: {User: {NEW: {name: "Bob"}}}}
		}) { id }
	}`, nil)
	assert.Contains(t, msg, "RelDuplicated")

	// The rollback also discarded Bob.
	data := execute(t, engine, `{ User(input: {name: "Bob"}) { id } }`, nil)
	assert.Empty(t, data["User"])
}

func TestIntegrationUpdateAndDelete(t *testing.T) {
	engine := newIntegrationEngine(t)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P", description: "old"}) { id } }`, nil)

	data := execute(t, engine, `mutation {
		ProjectUpdate(input: {match: {name: "P"}, modify: {description: "new"}}) { description }
	}`, nil)
	updated := data["ProjectUpdate"].([]any)
	require.Len(t, updated, 1)
	assert.Equal(t, "new", updated[0].(map[string]any)["description"])

	data = execute(t, engine, `mutation {
		ProjectDelete(input: {match: {name: "P"}, delete: {force: true}})
	}`, nil)
	assert.Equal(t, 1, data["ProjectDelete"])

	data = execute(t, engine, `{ Project(input: {name: "P"}) { id } }`, nil)
	assert.Empty(t, data["Project"])
}
