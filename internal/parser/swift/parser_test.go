package swift

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

func extract(t *testing.T, path, src string) *parser.FileResult {
	t.Helper()
	res, err := parser.Extract(context.Background(), New(), parser.SourceFile{Path: path, Content: []byte(src)})
	if err != nil {
		t.Fatalf("Extract(%s) error: %v", path, err)
	}
	return res
}

func findFunction(res *parser.FileResult, name string) *parser.Function {
	for i := range res.Functions {
		if res.Functions[i].Node.Name == name {
			return &res.Functions[i]
		}
	}
	return nil
}

func findClass(res *parser.FileResult, name string) *graph.NodeData {
	for i := range res.Classes {
		if res.Classes[i].Name == name {
			return &res.Classes[i]
		}
	}
	return nil
}

const clientSource = `import Foundation
import Combine

struct Person: Codable, Identifiable {
    let id: Int
    var name: String
}

protocol PersonStore {
    func all() async throws -> [Person]
}

final class APIClient: BaseClient, PersonStore {
    func all() async throws -> [Person] {
        let (data, _) = try await URLSession.shared.data(from: URL(string: "https://api.example.com/people")!)
        return try decode(data)
    }

    func create(_ person: Person) async throws {
        var request = URLRequest(url: URL(string: "https://api.example.com/person")!)
        request.httpMethod = "POST"
        request.httpBody = try JSONEncoder().encode(person)
        _ = try await URLSession.shared.data(for: request)
    }

    func decode(_ data: Data) throws -> [Person] {
        return try JSONDecoder().decode([Person].self, from: data)
    }
}

extension APIClient {
    func refresh() {
        log("refresh")
    }
}

func log(_ message: String) {
    print(message)
}
`

func TestParseTypesAndFunctions(t *testing.T) {
	res := extract(t, "Sources/PeopleKit/APIClient.swift", clientSource)

	wantImports := map[string]string{"Foundation": "Foundation", "Combine": "Combine"}
	if !reflect.DeepEqual(res.ImportMap, wantImports) {
		t.Errorf("ImportMap = %v, want %v", res.ImportMap, wantImports)
	}

	if len(res.Classes) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(res.Classes))
	}
	client := findClass(res, "APIClient")
	if client == nil {
		t.Fatal("APIClient not found")
	}
	if got := client.MetaValue(graph.MetaParent); got != "BaseClient" {
		t.Errorf("APIClient parent = %q, want BaseClient", got)
	}
	if got := client.MetaValue(graph.MetaIncludes); got != "PersonStore" {
		t.Errorf("APIClient includes = %q, want PersonStore", got)
	}
	if store := findClass(res, "PersonStore"); store == nil || store.MetaValue(graph.MetaInterface) != "true" {
		t.Errorf("PersonStore should be an interface: %+v", store)
	}
	if person := findClass(res, "Person"); person == nil || person.MetaValue(graph.MetaParent) != "Codable" {
		t.Errorf("Person should conform to Codable first: %+v", person)
	}

	if len(res.DataModels) != 1 || res.DataModels[0].Name != "Person" {
		t.Errorf("data models = %+v, want [Person]", res.DataModels)
	}

	operands := make(map[string][]string)
	for _, fn := range res.Functions {
		op := fn.Node.MetaValue(graph.MetaOperand)
		operands[op] = append(operands[op], fn.Node.Name)
	}
	for _, names := range operands {
		sort.Strings(names)
	}
	want := map[string][]string{
		"APIClient": {"all", "create", "decode", "refresh"},
		"":          {"log"},
	}
	if !reflect.DeepEqual(operands, want) {
		t.Errorf("functions by operand = %v, want %v", operands, want)
	}

	all := findFunction(res, "all")
	if all == nil {
		t.Fatal("all not found")
	}
	if !reflect.DeepEqual(all.ReturnTypes, []string{"Person"}) {
		t.Errorf("all return types = %v, want [Person]", all.ReturnTypes)
	}
}

func TestParseRequests(t *testing.T) {
	res := extract(t, "Sources/PeopleKit/APIClient.swift", clientSource)

	tests := []struct {
		fn    string
		route string
		verb  string
	}{
		{"all", "https://api.example.com/people", "GET"},
		{"create", "https://api.example.com/person", "POST"},
	}
	for _, tt := range tests {
		fn := findFunction(res, tt.fn)
		if fn == nil {
			t.Fatalf("%s not found", tt.fn)
		}
		if len(fn.Requests) != 1 {
			t.Fatalf("%s requests = %+v, want one", tt.fn, fn.Requests)
		}
		req := fn.Requests[0]
		if req.Name != tt.route {
			t.Errorf("%s route = %q, want %q", tt.fn, req.Name, tt.route)
		}
		if got := req.MetaValue(graph.MetaVerb); got != tt.verb {
			t.Errorf("%s verb = %q, want %q", tt.fn, got, tt.verb)
		}
	}
	if fn := findFunction(res, "decode"); fn == nil || len(fn.Requests) != 0 {
		t.Errorf("decode should send no requests")
	}
}

func TestParseCalls(t *testing.T) {
	res := extract(t, "Sources/PeopleKit/APIClient.swift", clientSource)

	type call struct{ source, name, operand string }
	got := make(map[call]bool)
	for _, c := range res.Calls {
		got[call{c.Source.Data.Name, c.Name, c.Operand}] = true
	}
	for _, want := range []call{
		{"all", "decode", ""},
		{"all", "data", "URLSession.shared"},
		{"create", "URLRequest", ""},
		{"create", "encode", "JSONEncoder()"},
		{"decode", "decode", "JSONDecoder()"},
		{"refresh", "log", ""},
		{"log", "print", ""},
	} {
		if !got[want] {
			t.Errorf("missing call %+v in %+v", want, res.Calls)
		}
	}
}

const testSource = `import XCTest
@testable import PeopleKit

final class APIClientTests: XCTestCase {
    func testDecodesPeople() throws {
        let client = APIClient()
        XCTAssertNotNil(client)
    }

    func makeClient() -> APIClient {
        return APIClient()
    }
}
`

func TestParseTests(t *testing.T) {
	res := extract(t, "Tests/PeopleKitTests/APIClientTests.swift", testSource)

	if len(res.Tests) != 1 {
		t.Fatalf("tests = %+v, want one", res.Tests)
	}
	test := res.Tests[0]
	if test.Type != graph.NodeTest || test.Data.Name != "testDecodesPeople" {
		t.Errorf("unexpected test %+v", test)
	}
	if fn := findFunction(res, "makeClient"); fn == nil || fn.Node.MetaValue(graph.MetaOperand) != "APIClientTests" {
		t.Errorf("makeClient should be an APIClientTests method")
	}

	ui := extract(t, "Tests/PeopleKitUITests/FlowTests.swift", testSource)
	if len(ui.Tests) != 1 || ui.Tests[0].Type != graph.NodeIntegrationTest {
		t.Errorf("UI tests should be integration tests: %+v", ui.Tests)
	}
}

func TestIsTest(t *testing.T) {
	s := New()
	tests := []struct {
		name string
		file string
		want bool
	}{
		{"testLoad", "Tests/PeopleKitTests/LoaderTests.swift", true},
		{"testLoad", "Sources/App/LoaderTest.swift", true},
		{"testLoad", "Sources/App/Loader.swift", false},
		{"load", "Tests/PeopleKitTests/LoaderTests.swift", false},
	}
	for _, tt := range tests {
		if got := s.IsTest(tt.name, tt.file); got != tt.want {
			t.Errorf("IsTest(%q, %q) = %v, want %v", tt.name, tt.file, got, tt.want)
		}
	}
}
