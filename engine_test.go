package grapht

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndReadBack(t *testing.T) {
	engine, _ := newTestEngine(t)

	data := execute(t, engine, `mutation {
		ProjectCreate(input: {name: "TodoApp", description: "TODO list"}) {
			id
			name
			description
		}
	}`, nil)

	created := data["ProjectCreate"].(map[string]any)
	require.NotEmpty(t, created["id"])
	assert.Equal(t, "TodoApp", created["name"])
	assert.Equal(t, "TODO list", created["description"])

	// Read back by id, using the operator object form of the filter.
	data = execute(t, engine, fmt.Sprintf(`{
		Project(input: {id: {EQ: "%s"}}) {
			id
			name
			description
		}
	}`, created["id"]), nil)

	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	read := projects[0].(map[string]any)
	assert.Equal(t, created["id"], read["id"])
	assert.Equal(t, "TodoApp", read["name"])
	assert.Equal(t, "TODO list", read["description"])
}

func TestReadWithBareScalarFilter(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "A"}) { id } }`, nil)
	execute(t, engine, `mutation { ProjectCreate(input: {name: "B"}) { id } }`, nil)

	data := execute(t, engine, `{ Project(input: {name: "A"}) { name } }`, nil)
	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "A", projects[0].(map[string]any)["name"])
}

func TestCreateWithNestedNewRel(t *testing.T) {
	engine, store := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {
				props: {since: "2024"},
				dst: {User: {NEW: {name: "Alice"}}}
			}
		}) { id }
	}`, nil)

	assert.Equal(t, 2, store.nodeCount())
	assert.Equal(t, 1, store.relCount())

	data := execute(t, engine, `{
		Project(input: {name: "P"}) {
			name
			owner {
				id
				props { since }
				src { name }
				dst { ... on User { name } }
			}
		}
	}`, nil)

	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	owner := projects[0].(map[string]any)["owner"].(map[string]any)
	require.NotEmpty(t, owner["id"])
	assert.Equal(t, map[string]any{"since": "2024"}, owner["props"])
	assert.Equal(t, map[string]any{"name": "P"}, owner["src"])
	assert.Equal(t, map[string]any{"name": "Alice"}, owner["dst"])
}

func TestSingleRelDuplicateRejected(t *testing.T) {
	engine, store := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {dst: {User: {NEW: {name: "Alice"}}}}
		}) { id }
	}`, nil)

	nodesBefore := store.nodeCount()
	relsBefore := store.relCount()

	msg := executeExpectError(t, engine, `mutation {
		ProjectOwnerCreate(input: {
			match: {name: "P"},
			create: {dst: {User: {NEW: {name: "Bob"}}}}
		}) { id }
	}`, nil)
	assert.Contains(t, msg, "RelDuplicated")

	// The whole request rolled back: no Bob, no second owner edge.
	assert.Equal(t, nodesBefore, store.nodeCount())
	assert.Equal(t, relsBefore, store.relCount())
}

func TestValidatorRejectsProperty(t *testing.T) {
	engine, store := newTestEngine(t)

	msg := executeExpectError(t, engine, `mutation {
		ProjectCreate(input: {name: ""}) { id }
	}`, nil)
	assert.Contains(t, msg, "ValidationError")
	assert.Equal(t, 0, store.nodeCount())
}

func TestValidatorRejectsUpdate(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P"}) { id } }`, nil)

	msg := executeExpectError(t, engine, `mutation {
		ProjectUpdate(input: {match: {name: "P"}, modify: {name: ""}}) { id }
	}`, nil)
	assert.Contains(t, msg, "ValidationError")

	// The rejected update left the original value behind.
	data := execute(t, engine, `{ Project(input: {name: "P"}) { name } }`, nil)
	require.Len(t, data["Project"].([]any), 1)
}

func TestUpdateScalarsAndRelChange(t *testing.T) {
	engine, store := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {name: "P", description: "old"}) { id }
	}`, nil)

	data := execute(t, engine, `mutation {
		ProjectUpdate(input: {
			match: {name: "P"},
			modify: {
				description: "new",
				owner: {ADD: {dst: {User: {NEW: {name: "Alice"}}}}}
			}
		}) { id description }
	}`, nil)

	updated := data["ProjectUpdate"].([]any)
	require.Len(t, updated, 1)
	assert.Equal(t, "new", updated[0].(map[string]any)["description"])
	assert.Equal(t, 1, store.relCount())

	// A second ADD through the change input violates single cardinality.
	msg := executeExpectError(t, engine, `mutation {
		ProjectUpdate(input: {
			match: {name: "P"},
			modify: {owner: {ADD: {dst: {User: {NEW: {name: "Bob"}}}}}}
		}) { id }
	}`, nil)
	assert.Contains(t, msg, "RelDuplicated")

	// DELETE through the change input removes the edge.
	execute(t, engine, `mutation {
		ProjectUpdate(input: {
			match: {name: "P"},
			modify: {owner: {DELETE: {match: {}}}}
		}) { id }
	}`, nil)
	assert.Equal(t, 0, store.relCount())
}

func TestRelChangeRejectsMultipleKeys(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P"}) { id } }`, nil)

	msg := executeExpectError(t, engine, `mutation {
		ProjectUpdate(input: {
			match: {name: "P"},
			modify: {owner: {
				ADD: {dst: {User: {NEW: {name: "A"}}}},
				DELETE: {match: {}}
			}}
		}) { id }
	}`, nil)
	assert.Contains(t, msg, "only one of ADD, UPDATE, or DELETE")
}

func TestRelUpdateProps(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {props: {since: "2020"}, dst: {User: {NEW: {name: "Alice"}}}}
		}) { id }
	}`, nil)

	data := execute(t, engine, `mutation {
		ProjectOwnerUpdate(input: {
			match: {props: {since: "2020"}},
			update: {props: {since: "2024"}}
		}) { id props { since } }
	}`, nil)

	rels := data["ProjectOwnerUpdate"].([]any)
	require.Len(t, rels, 1)
	assert.Equal(t, map[string]any{"since": "2024"}, rels[0].(map[string]any)["props"])
}

func TestDeleteRefusedWhileRelsRemain(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {dst: {User: {NEW: {name: "Alice"}}}}
		}) { id }
	}`, nil)

	msg := executeExpectError(t, engine, `mutation {
		ProjectDelete(input: {match: {name: "P"}})
	}`, nil)
	assert.Contains(t, msg, "force")
}

func TestCascadingDeleteWithForce(t *testing.T) {
	engine, store := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			owner: {dst: {User: {NEW: {name: "Alice"}}}},
			issues: [
				{dst: {Feature: {NEW: {title: "f1"}}}},
				{dst: {Bug: {NEW: {title: "b1", severity: 2}}}}
			]
		}) { id }
	}`, nil)
	require.Equal(t, 4, store.nodeCount())
	require.Equal(t, 3, store.relCount())

	data := execute(t, engine, `mutation {
		ProjectDelete(input: {match: {name: "P"}, delete: {force: true}})
	}`, nil)
	assert.Equal(t, 1, data["ProjectDelete"])

	readBack := execute(t, engine, `{ Project(input: {name: "P"}) { id } }`, nil)
	assert.Empty(t, readBack["Project"])

	// The owner and issue relationships went with the project; the
	// endpoint nodes stay.
	assert.Equal(t, 0, store.relCount())
	assert.Equal(t, 3, store.nodeCount())
}

func TestRelDeleteEndpoint(t *testing.T) {
	engine, store := newTestEngine(t)

	execute(t, engine, `mutation {
		ProjectCreate(input: {
			name: "P",
			issues: [
				{dst: {Feature: {NEW: {title: "f1"}}}},
				{dst: {Bug: {NEW: {title: "b1"}}}}
			]
		}) { id }
	}`, nil)

	data := execute(t, engine, `mutation {
		ProjectIssuesDelete(input: {match: {}})
	}`, nil)
	assert.Equal(t, 2, data["ProjectIssuesDelete"])
	assert.Equal(t, 0, store.relCount())
}

func TestIdempotentReadWithinTransaction(t *testing.T) {
	engine, _ := newTestEngine(t)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P"}) { id } }`, nil)

	data := execute(t, engine, `{
		a: Project(input: {name: "P"}) { id name }
		b: Project(input: {name: "P"}) { id name }
	}`, nil)
	assert.Equal(t, data["a"], data["b"])
}

func TestVersionQuery(t *testing.T) {
	t.Run("with version set", func(t *testing.T) {
		engine, _ := newTestEngine(t, WithVersion("1.2.3"))
		data := execute(t, engine, `{ _version }`, nil)
		assert.Equal(t, "1.2.3", data["_version"])
	})

	t.Run("without version", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		data := execute(t, engine, `{ _version }`, nil)
		assert.Nil(t, data["_version"])
	})
}

func TestHandlerOrdering(t *testing.T) {
	bag := NewEventHandlerBag()
	appendMarker := func(marker string) BeforeMutationFunc {
		return func(input Value, ef *EventFacade) (Value, error) {
			m := input.(map[string]any)
			desc, _ := m["description"].(string)
			m["description"] = desc + marker
			return m, nil
		}
	}
	bag.RegisterBeforeNodeCreate([]string{"Project"}, appendMarker("1"))
	bag.RegisterBeforeNodeCreate([]string{"Project"}, appendMarker("2"))
	bag.RegisterBeforeNodeCreate([]string{"Project"}, appendMarker("3"))

	appendAfter := func(marker string) AfterNodeFunc {
		return func(nodes []*Node, ef *EventFacade) ([]*Node, error) {
			for _, n := range nodes {
				desc, _ := n.Fields["description"].(string)
				n.Fields["description"] = desc + marker
			}
			return nodes, nil
		}
	}
	bag.RegisterAfterNodeCreate([]string{"Project"}, appendAfter("a"))
	bag.RegisterAfterNodeCreate([]string{"Project"}, appendAfter("b"))
	bag.RegisterAfterNodeCreate([]string{"Project"}, appendAfter("c"))

	engine, _ := newTestEngine(t, WithEventHandlers(bag))

	data := execute(t, engine, `mutation {
		ProjectCreate(input: {name: "P", description: "x"}) { description }
	}`, nil)
	// Before handlers fold in registration order into the stored value;
	// after handlers fold over the result on the way out.
	assert.Equal(t, "x123abc", data["ProjectCreate"].(map[string]any)["description"])

	stored := execute(t, engine, `{ Project(input: {name: "P"}) { description } }`, nil)
	projects := stored["Project"].([]any)
	assert.Equal(t, "x123", projects[0].(map[string]any)["description"])
}

func TestHandlerFailureRollsBack(t *testing.T) {
	bag := NewEventHandlerBag()
	bag.RegisterAfterNodeCreate([]string{"Project"}, func(nodes []*Node, ef *EventFacade) ([]*Node, error) {
		return nil, NewError(ErrValidationError, "rejected after the fact")
	})
	engine, store := newTestEngine(t, WithEventHandlers(bag))

	executeExpectError(t, engine, `mutation {
		ProjectCreate(input: {name: "P"}) { id }
	}`, nil)
	assert.Equal(t, 0, store.nodeCount())
}

func TestHandlerFacadeCRUD(t *testing.T) {
	bag := NewEventHandlerBag()
	// A before-create handler that provisions an audit user through the
	// facade, inside the same transaction.
	bag.RegisterBeforeNodeCreate([]string{"Project"}, func(input Value, ef *EventFacade) (Value, error) {
		if _, err := ef.CreateNode("User", map[string]any{"name": "auditor"}); err != nil {
			return nil, err
		}
		return input, nil
	})
	engine, store := newTestEngine(t, WithEventHandlers(bag))

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P"}) { id } }`, nil)
	assert.Equal(t, 2, store.nodeCount())

	data := execute(t, engine, `{ User(input: {name: "auditor"}) { name } }`, nil)
	assert.Len(t, data["User"].([]any), 1)
}

func TestBeforeReadTransformsFilter(t *testing.T) {
	bag := NewEventHandlerBag()
	bag.RegisterBeforeNodeRead([]string{"Project"}, func(input Value, ef *EventFacade) (Value, error) {
		// Pin every read to a fixed name regardless of the client filter.
		return map[string]any{"name": "visible"}, nil
	})
	engine, _ := newTestEngine(t, WithEventHandlers(bag))

	execute(t, engine, `mutation { ProjectCreate(input: {name: "visible"}) { id } }`, nil)
	execute(t, engine, `mutation { ProjectCreate(input: {name: "hidden"}) { id } }`, nil)

	data := execute(t, engine, `{ Project(input: {name: "hidden"}) { name } }`, nil)
	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "visible", projects[0].(map[string]any)["name"])
}

func TestNoDatabaseEngine(t *testing.T) {
	engine, err := NewEngine(context.Background(), testConfig(t), NewNoEndpoint(), WithVersion("9.9.9"))
	require.NoError(t, err)

	// Schema-only serving: the version query works.
	data := execute(t, engine, `{ _version }`, nil)
	assert.Equal(t, "9.9.9", data["_version"])

	// Data operations surface DatabaseNotFound.
	msg := executeExpectError(t, engine, `{ Project { id } }`, nil)
	assert.Contains(t, msg, "DatabaseNotFound")
}

func TestCustomEndpointAndDynamicResolver(t *testing.T) {
	c := testConfig(t)
	c.Endpoints = append(c.Endpoints, EndpointConfig{
		Name:   "ProjectCount",
		Class:  EndpointQuery,
		Output: &EndpointTypeConfig{Scalar: "Int"},
	})
	c.Model[3].Props = append(c.Model[3].Props, PropConfig{
		Name:     "display",
		Type:     "String",
		Resolver: "ProjectDisplay",
	})

	ep := newMemEndpoint()
	engine, err := NewEngine(context.Background(), c, ep,
		WithValidators(map[string]ValidatorFunc{"NonEmpty": nonEmptyValidator}),
		WithResolvers(map[string]ResolverFunc{
			"ProjectCount": func(rf *ResolverFacade) (any, error) {
				nodes, err := rf.Events().ReadNodes("Project", nil)
				if err != nil {
					return nil, err
				}
				return len(nodes), nil
			},
			"ProjectDisplay": func(rf *ResolverFacade) (any, error) {
				node := rf.Parent().(*Node)
				name, _ := node.Fields["name"].(string)
				return "project: " + name, nil
			},
		}))
	require.NoError(t, err)

	execute(t, engine, `mutation { ProjectCreate(input: {name: "P"}) { id } }`, nil)
	execute(t, engine, `mutation { ProjectCreate(input: {name: "Q"}) { id } }`, nil)

	data := execute(t, engine, `{ ProjectCount }`, nil)
	assert.Equal(t, 2, data["ProjectCount"])

	data = execute(t, engine, `{ Project(input: {name: "P"}) { display } }`, nil)
	projects := data["Project"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "project: P", projects[0].(map[string]any)["display"])
}

func TestComparisonOperators(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		execute(t, engine, fmt.Sprintf(`mutation { ProjectCreate(input: {name: "%s"}) { id } }`, name), nil)
	}

	t.Run("IN", func(t *testing.T) {
		data := execute(t, engine, `{ Project(input: {name: {IN: ["alpha", "gamma"]}}) { name } }`, nil)
		assert.Len(t, data["Project"].([]any), 2)
	})

	t.Run("CONTAINS", func(t *testing.T) {
		data := execute(t, engine, `{ Project(input: {name: {CONTAINS: "amm"}}) { name } }`, nil)
		projects := data["Project"].([]any)
		require.Len(t, projects, 1)
		assert.Equal(t, "gamma", projects[0].(map[string]any)["name"])
	})

	t.Run("NEQ", func(t *testing.T) {
		data := execute(t, engine, `{ Project(input: {name: {NEQ: "beta"}}) { name } }`, nil)
		assert.Len(t, data["Project"].([]any), 2)
	})

	t.Run("GT on rel dst filter", func(t *testing.T) {
		execute(t, engine, `mutation {
			ProjectCreate(input: {
				name: "withBugs",
				issues: [{dst: {Bug: {NEW: {title: "b", severity: 5}}}}]
			}) { id }
		}`, nil)
		data := execute(t, engine, `{
			Project(input: {issues: {dst: {Bug: {severity: {GT: 3}}}}}) { name }
		}`, nil)
		projects := data["Project"].([]any)
		require.Len(t, projects, 1)
		assert.Equal(t, "withBugs", projects[0].(map[string]any)["name"])
	})
}
