package typescript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

func extract(t *testing.T, s *Stack, path, src string) *parser.FileResult {
	t.Helper()
	res, err := parser.Extract(context.Background(), s, parser.SourceFile{Path: path, Content: []byte(src)})
	require.NoError(t, err)
	return res
}

func functionNames(res *parser.FileResult) []string {
	var names []string
	for _, fn := range res.Functions {
		names = append(names, fn.Node.Name)
	}
	return names
}

func findFunction(t *testing.T, res *parser.FileResult, name string) parser.Function {
	t.Helper()
	for _, fn := range res.Functions {
		if fn.Node.Name == name {
			return fn
		}
	}
	t.Fatalf("function %s not found in %v", name, functionNames(res))
	return parser.Function{}
}

const serviceSource = `
import { EventEmitter } from 'events';
import axios from 'axios';
import type { Config } from './config';
import * as utils from './utils';

export interface Serializable {
  serialize(): string;
  deserialize(data: string): void;
}

export interface Loggable extends Serializable {
  log(message: string): void;
}

export type UserRole = 'admin' | 'editor' | 'viewer';

export type Person = {
  id: number;
  name: string;
};

export class UserService extends EventEmitter implements Serializable {
  private name: string;

  constructor(name: string) {
    super();
    this.name = name;
  }

  serialize(): string {
    return JSON.stringify({ name: this.name });
  }

  deserialize(data: string): void {
    const parsed = JSON.parse(data);
    this.name = utils.clean(parsed.name);
  }
}

export function createUser(name: string): UserService {
  return new UserService(name);
}

export const formatRole = (role: string): string => {
  return role.charAt(0).toUpperCase() + role.slice(1);
};

function helperFunc(x: number): number {
  return x * 2;
}
`

func TestStacks(t *testing.T) {
	ts := New()
	assert.Equal(t, parser.LangTypeScript, ts.Language())
	assert.Equal(t, []string{"package.json"}, ts.PackageFiles())
	assert.Nil(t, ts.Queries().Pages)

	react := NewReact()
	assert.Equal(t, parser.LangReact, react.Language())
	assert.Contains(t, react.Extensions(), ".tsx")
	assert.NotNil(t, react.Queries().Pages)
}

func TestParseTypeScript(t *testing.T) {
	res := extract(t, New(), "src/services/user.ts", serviceSource)

	require.NotNil(t, res.Import)
	assert.Equal(t, map[string]string{
		"EventEmitter": "events",
		"axios":        "axios",
		"Config":       "./config",
		"utils":        "./utils",
	}, res.ImportMap)
	assert.Equal(t, "./config,./utils,axios,events", res.Import.MetaValue(graph.MetaSource))

	classes := make(map[string]graph.NodeData)
	for _, c := range res.Classes {
		classes[c.Name] = c
	}
	require.Len(t, classes, 3)
	assert.Equal(t, "true", classes["Serializable"].MetaValue(graph.MetaInterface))
	assert.Equal(t, "true", classes["Loggable"].MetaValue(graph.MetaInterface))
	assert.Equal(t, "EventEmitter", classes["UserService"].MetaValue(graph.MetaParent))
	assert.Equal(t, "Serializable", classes["UserService"].MetaValue(graph.MetaImplements))

	var models []string
	for _, dm := range res.DataModels {
		models = append(models, dm.Name)
	}
	assert.ElementsMatch(t, []string{"Serializable", "Loggable", "Person"}, models)

	assert.ElementsMatch(t, []string{
		"constructor", "serialize", "deserialize", "createUser", "formatRole", "helperFunc",
	}, functionNames(res))
	assert.Equal(t, "UserService", findFunction(t, res, "serialize").Node.MetaValue(graph.MetaOperand))
	assert.Empty(t, findFunction(t, res, "createUser").Node.MetaValue(graph.MetaOperand))
	assert.Equal(t, []string{"UserService"}, findFunction(t, res, "createUser").ReturnTypes)

	var clean *parser.Call
	for i, c := range res.Calls {
		if c.Name == "clean" {
			clean = &res.Calls[i]
		}
	}
	require.NotNil(t, clean)
	assert.Equal(t, "utils", clean.Operand)
	assert.Equal(t, "deserialize", clean.Source.Data.Name)
}

const serverSource = `
import express from 'express';
import * as handlers from './handlers';
import { getPerson } from './handlers';

const app = express();
const router = express.Router();

app.get('/person/:id', getPerson);
app.post('/person', authenticate, handlers.createPerson);
router.delete('/people/:id', (req, res) => res.sendStatus(204));

function authenticate(req, res, next) {
  next();
}
`

func TestParseExpressEndpoints(t *testing.T) {
	res := extract(t, New(), "src/server.ts", serverSource)

	type ep struct{ name, verb, handler string }
	var got []ep
	for _, e := range res.Endpoints {
		got = append(got, ep{e.Name, e.MetaValue(graph.MetaVerb), e.MetaValue(graph.MetaHandler)})
	}
	assert.ElementsMatch(t, []ep{
		{"/person/:id", "GET", "getPerson"},
		{"/person", "POST", "createPerson"},
		{"/people/:id", "DELETE", ""},
	}, got)

	assert.Equal(t, []string{"authenticate"}, functionNames(res))
}

const clientSource = `
import axios from 'axios';

export async function loadPeople() {
  const res = await fetch('/api/people');
  return res.json();
}

export async function savePerson(p: Person) {
  await fetch('/api/people/' + p.id, { method: 'PUT', body: JSON.stringify(p) });
  return axios.post('/api/people', p);
}

export const api = new ApiClient('/api');
`

func TestParseRequests(t *testing.T) {
	res := extract(t, New(), "src/api.ts", clientSource)

	load := findFunction(t, res, "loadPeople")
	require.Len(t, load.Requests, 1)
	assert.Equal(t, "/api/people", load.Requests[0].Name)
	assert.Equal(t, "GET", load.Requests[0].MetaValue(graph.MetaVerb))

	save := findFunction(t, res, "savePerson")
	verbs := make(map[string]string)
	for _, r := range save.Requests {
		verbs[r.Name] = r.MetaValue(graph.MetaVerb)
	}
	assert.Equal(t, map[string]string{"/api/people/": "PUT", "/api/people": "POST"}, verbs)

	require.Len(t, res.Instances, 1)
	assert.Equal(t, "api", res.Instances[0].Name)
	assert.Equal(t, "ApiClient", res.Instances[0].DataType)
}

func TestParseJestSuite(t *testing.T) {
	res := extract(t, New(), "src/services/user.test.ts", `
import { createUser } from './user';

describe('createUser', () => {
  it('sets the name', () => {
    expect(createUser('ada').name).toBe('ada');
  });
});
`)
	require.Len(t, res.Tests, 1)
	assert.Equal(t, graph.NodeTest, res.Tests[0].Type)
	assert.Equal(t, "createUser", res.Tests[0].Data.Name)
	assert.Equal(t, "unit", res.Tests[0].Data.MetaValue(graph.MetaTestKind))

	var called bool
	for _, c := range res.Calls {
		if c.Name == "createUser" && c.Source.Type == graph.NodeTest {
			called = true
		}
	}
	assert.True(t, called)
}

func TestE2ESuiteIsIntegration(t *testing.T) {
	res := extract(t, New(), "e2e/people.spec.ts", `
test('adds a person', async ({ page }) => {
  await page.goto('/new-person');
});
`)
	require.Len(t, res.Tests, 1)
	assert.Equal(t, graph.NodeIntegrationTest, res.Tests[0].Type)
	assert.Equal(t, "e2e", res.Tests[0].Data.MetaValue(graph.MetaTestKind))
}

const appSource = `
import React from 'react';
import { BrowserRouter, Routes, Route } from 'react-router-dom';
import People from './components/People';
import NewPerson from './components/NewPerson';

function App() {
  return (
    <BrowserRouter>
      <Routes>
        <Route path="/" element={<People />} />
        <Route path="/new-person" element={<NewPerson />} />
      </Routes>
    </BrowserRouter>
  );
}

export default App;
`

func TestParseReactRoutes(t *testing.T) {
	res := extract(t, NewReact(), "src/App.tsx", appSource)

	require.Equal(t, []string{"App"}, functionNames(res))
	assert.Equal(t, "true", res.Functions[0].Node.MetaValue(graph.MetaComponent))

	pages := make(map[string][]parser.Target)
	for _, p := range res.Pages {
		pages[p.Node.Name] = p.Renders
	}
	assert.Equal(t, map[string][]parser.Target{
		"/":           {{Name: "People"}},
		"/new-person": {{Name: "NewPerson"}},
	}, pages)

	var rendered []string
	for _, c := range res.Calls {
		if c.Source.Data.Name == "App" {
			rendered = append(rendered, c.Name)
		}
	}
	assert.Subset(t, rendered, []string{"BrowserRouter", "Routes", "Route", "People", "NewPerson"})
}

const newPersonSource = `
import styled from 'styled-components';
import { useState } from 'react';

const SubmitButton = styled.button` + "`" + `
  color: white;
` + "`" + `;

export default function NewPerson() {
  const [name, setName] = useState('');
  return (
    <form>
      <input value={name} onChange={(e) => setName(e.target.value)} />
      <SubmitButton onClick={() => fetch('/person', { method: 'POST' })}>Add</SubmitButton>
    </form>
  );
}
`

func TestParseStyledComponent(t *testing.T) {
	res := extract(t, NewReact(), "src/components/NewPerson.tsx", newPersonSource)

	var count int
	for _, fn := range res.Functions {
		if fn.Node.Name == "SubmitButton" {
			count++
			assert.Equal(t, "true", fn.Node.MetaValue(graph.MetaComponent))
		}
	}
	assert.Equal(t, 1, count)

	np := findFunction(t, res, "NewPerson")
	assert.Equal(t, "true", np.Node.MetaValue(graph.MetaComponent))
	require.Len(t, np.Requests, 1)
	assert.Equal(t, "/person", np.Requests[0].Name)
	assert.Equal(t, "POST", np.Requests[0].MetaValue(graph.MetaVerb))

	var usesButton bool
	for _, c := range res.Calls {
		if c.Name == "SubmitButton" && c.Source.Data.Name == "NewPerson" {
			usesButton = true
		}
	}
	assert.True(t, usesButton)
}

func TestTestFilenames(t *testing.T) {
	for name, want := range map[string]bool{
		"user.test.ts":    true,
		"user.spec.tsx":   true,
		"people.cy.ts":    true,
		"user.ts":         false,
		"testing.ts":      false,
		"contest.util.ts": false,
	} {
		assert.Equal(t, want, isTestFilename(name), name)
	}
}
