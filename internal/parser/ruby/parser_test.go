package ruby

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

func extract(t *testing.T, path, src string) *parser.FileResult {
	t.Helper()
	res, err := parser.Extract(context.Background(), New(), parser.SourceFile{Path: path, Content: []byte(src)})
	require.NoError(t, err)
	return res
}

type route struct {
	name, verb, handler string
}

func routes(eps []graph.NodeData) []route {
	out := make([]route, 0, len(eps))
	for _, ep := range eps {
		out = append(out, route{ep.Name, ep.MetaValue(graph.MetaVerb), ep.MetaValue(graph.MetaHandler)})
	}
	return out
}

func TestLanguageAndExtensions(t *testing.T) {
	s := New()
	assert.Equal(t, parser.LangRuby, s.Language())
	assert.Contains(t, s.Extensions(), ".rb")
	assert.Contains(t, s.Extensions(), ".erb")
	assert.Equal(t, []string{"Gemfile"}, s.PackageFiles())
}

const routesSrc = `Rails.application.routes.draw do
  get 'person/:id', to: 'people#get_person'
  post 'person', to: 'people#create_person'
  resources :people, only: [:destroy] do
    collection do
      get 'articles', to: 'people#articles'
    end
    member do
      post 'articles', to: 'people#create_article'
    end
  end
  resources :countries, only: [] do
    post 'process', to: 'countries#process_country'
  end
  get 'profile/:id', to: 'people#show_person_profile'
end
`

func TestParseRoutes(t *testing.T) {
	res := extract(t, "config/routes.rb", routesSrc)

	assert.ElementsMatch(t, []route{
		{"person/:id", "GET", "people#get_person"},
		{"person", "POST", "people#create_person"},
		{"/people/:id", "DELETE", "people#destroy"},
		{"/people/articles", "GET", "people#articles"},
		{"/people/:id/articles", "POST", "people#create_article"},
		{"/countries/:country_id/process", "POST", "countries#process_country"},
		{"profile/:id", "GET", "people#show_person_profile"},
	}, routes(res.Endpoints))

	for _, ep := range res.Endpoints {
		assert.Equal(t, "config/routes.rb", ep.File)
	}
}

const resourceRoutesSrc = `Rails.application.routes.draw do
  namespace :admin do
    resources :people, except: [:new, :edit]
  end
  resource :profile, only: [:show, :update]
  get 'welcome/index'
  match 'search', to: 'search#run', via: [:get, :post]
end
`

func TestParseResourceExpansion(t *testing.T) {
	res := extract(t, "config/routes.rb", resourceRoutesSrc)

	assert.ElementsMatch(t, []route{
		{"/admin/people", "GET", "admin/people#index"},
		{"/admin/people", "POST", "admin/people#create"},
		{"/admin/people/:id", "GET", "admin/people#show"},
		{"/admin/people/:id", "PATCH", "admin/people#update"},
		{"/admin/people/:id", "PUT", "admin/people#update"},
		{"/admin/people/:id", "DELETE", "admin/people#destroy"},
		{"/profile", "GET", "profiles#show"},
		{"/profile", "PATCH", "profiles#update"},
		{"/profile", "PUT", "profiles#update"},
		{"welcome/index", "GET", "welcome#index"},
		{"search", "GET", "search#run"},
		{"search", "POST", "search#run"},
	}, routes(res.Endpoints))
}

func TestRoutesOnlyInRoutesFile(t *testing.T) {
	res := extract(t, "app/services/client.rb", `class Client
  def fetch
    get 'person/:id', to: 'people#show'
  end
end
`)
	assert.Empty(t, res.Endpoints)
}

const controllerSrc = `require 'httparty'

class PeopleController < ApplicationController
  include Authentication
  include Pagination

  def get_person
    person = PersonService.get_person_by_id(params[:id])
    render json: person
  end

  def create_person
    @person = Person.new(person_params)
    notify_remote
  end

  private

  def notify_remote
    HTTParty.post("https://hooks.example.com/people", body: {})
  end
end
`

func TestParseController(t *testing.T) {
	path := "app/controllers/people_controller.rb"
	res := extract(t, path, controllerSrc)

	require.NotNil(t, res.Import)
	assert.Equal(t, parser.ImportNodeName, res.Import.Name)
	assert.Contains(t, res.Import.Body, "require 'httparty'")
	assert.Equal(t, "httparty", res.ImportMap["httparty"])

	require.Len(t, res.Classes, 1)
	ctrl := res.Classes[0]
	assert.Equal(t, "PeopleController", ctrl.Name)
	assert.Equal(t, "ApplicationController", ctrl.MetaValue(graph.MetaParent))
	assert.Equal(t, "Authentication,Pagination", ctrl.MetaValue(graph.MetaIncludes))

	var names []string
	for _, fn := range res.Functions {
		names = append(names, fn.Node.Name)
		assert.Equal(t, "PeopleController", fn.Node.MetaValue(graph.MetaOperand), fn.Node.Name)
	}
	assert.Equal(t, []string{"get_person", "create_person", "notify_remote"}, names)

	calls := make(map[string]parser.Call)
	for _, c := range res.Calls {
		calls[c.Source.Data.Name+"->"+c.Name] = c
	}
	require.Contains(t, calls, "get_person->get_person_by_id")
	assert.Equal(t, "PersonService", calls["get_person->get_person_by_id"].Operand)
	assert.Equal(t, graph.NodeFunction, calls["get_person->get_person_by_id"].Source.Type)
	assert.Contains(t, calls, "create_person->notify_remote")
	assert.Contains(t, calls, "get_person->render")

	notify := res.Functions[2]
	require.Len(t, notify.Requests, 1)
	assert.Equal(t, "https://hooks.example.com/people", notify.Requests[0].Name)
	assert.Equal(t, "POST", notify.Requests[0].MetaValue(graph.MetaVerb))

	require.Len(t, res.Instances, 1)
	assert.Equal(t, "@person", res.Instances[0].Name)
	assert.Equal(t, "Person", res.Instances[0].DataType)

	assert.Empty(t, res.DataModels)
	assert.Empty(t, res.Tests)
}

func TestParseModel(t *testing.T) {
	res := extract(t, "app/models/person.rb", `class Person < ApplicationRecord
  has_many :articles

  def self.find_by_name(name)
    where(name: name).first
  end
end
`)
	require.Len(t, res.DataModels, 1)
	assert.Equal(t, "Person", res.DataModels[0].Name)
	require.Len(t, res.Classes, 1)
	assert.Equal(t, "ApplicationRecord", res.Classes[0].MetaValue(graph.MetaParent))
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "find_by_name", res.Functions[0].Node.Name)
	assert.Equal(t, "Person", res.Functions[0].Node.MetaValue(graph.MetaOperand))
}

func TestParseModuleAsClass(t *testing.T) {
	res := extract(t, "app/controllers/concerns/authentication.rb", `module Authentication
  def current_user
    @current_user
  end
end
`)
	require.Len(t, res.Classes, 1)
	assert.Equal(t, "Authentication", res.Classes[0].Name)
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "Authentication", res.Functions[0].Node.MetaValue(graph.MetaOperand))
}

func TestRSpecRequestSpecIsIntegration(t *testing.T) {
	res := extract(t, "spec/requests/people_spec.rb", `require 'rails_helper'

RSpec.describe "People API", type: :request do
  it "returns a person" do
    get "/person/1"
  end
end
`)
	require.Len(t, res.Tests, 1)
	assert.Equal(t, graph.NodeIntegrationTest, res.Tests[0].Type)
	assert.Equal(t, "People API", res.Tests[0].Data.Name)
	assert.Contains(t, res.Tests[0].Data.Body, `get "/person/1"`)

	var fromTest bool
	for _, c := range res.Calls {
		if c.Name == "get" && c.Source.Type == graph.NodeIntegrationTest {
			fromTest = true
		}
	}
	assert.True(t, fromTest, "call inside the spec should be attributed to the test")
}

func TestMinitestFile(t *testing.T) {
	res := extract(t, "test/models/person_test.rb", `class PersonTest < ActiveSupport::TestCase
  test "validates name" do
    assert Person.new.valid?
  end

  def test_full_name
    person = Person.new(name: "Ada")
    assert_equal "Ada", person.name
  end
end
`)
	var names []string
	for _, tc := range res.Tests {
		assert.Equal(t, graph.NodeTest, tc.Type)
		assert.Equal(t, "unit", tc.Data.MetaValue(graph.MetaTestKind))
		names = append(names, tc.Data.Name)
	}
	assert.ElementsMatch(t, []string{"validates name", "test_full_name"}, names)
	assert.Empty(t, res.Functions)
}

func TestRubyTestFilenamePatterns(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"person_spec.rb", true},
		{"person_test.rb", true},
		{"test_person.rb", true},
		{"person.rb", false},
		{"spec_helper.rb", false},
		{"person_spec.erb", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTestFilename(tt.name), tt.name)
	}
}

func TestViewPage(t *testing.T) {
	s := New()
	assert.True(t, s.IsPageFile("app/views/people/show_person_profile.erb"))
	assert.False(t, s.IsPageFile("app/models/person.rb"))

	page, ok := s.TemplatePage("app/views/people/show_person_profile.erb", []byte(`<h1><%= @person.name %></h1>
<a href="/people">Back</a>
`))
	require.True(t, ok)
	assert.Equal(t, "show_person_profile.erb", page.Node.Name)
	assert.Equal(t, "show_person_profile", page.Node.MetaValue(graph.MetaRenders))
	assert.Equal(t, "/people", page.Node.MetaValue(graph.MetaLinks))
	assert.Equal(t, []parser.Target{{Name: "show_person_profile", FileSuffix: "people_controller.rb"}}, page.Renders)

	partial, ok := s.TemplatePage("app/views/people/_form.html.erb", []byte("<form></form>"))
	require.True(t, ok)
	assert.Empty(t, partial.Renders)

	nested, ok := s.TemplatePage("app/views/admin/people/index.html.erb", nil)
	require.True(t, ok)
	assert.Equal(t, []parser.Target{{Name: "index", FileSuffix: "admin/people_controller.rb"}}, nested.Renders)
}

func TestExtractViewFile(t *testing.T) {
	res := extract(t, "app/views/people/show.html.erb", "<p>hi</p>\n")
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "show.html.erb", res.Pages[0].Node.Name)
	assert.Equal(t, 1, res.Lines)
}

func TestExtractGemfile(t *testing.T) {
	res := extract(t, "Gemfile", "source 'https://rubygems.org'\ngem 'rails', '~> 7.1'\ngem 'pg'\n")
	require.Len(t, res.Libraries, 2)
	assert.Equal(t, "rails", res.Libraries[0].Name)
	assert.Equal(t, "ruby", res.Libraries[0].MetaValue(graph.MetaEcosystem))
}

func TestHandlerTargets(t *testing.T) {
	s := New()
	ep := graph.NodeData{Name: "/people/:id", Meta: map[string]string{graph.MetaHandler: "admin/people#show"}}
	assert.Equal(t, []parser.Target{{Name: "show", FileSuffix: "admin/people_controller.rb"}}, s.HandlerTargets(ep))

	ep.Meta[graph.MetaHandler] = "health_check"
	assert.Equal(t, []parser.Target{{Name: "health_check"}}, s.HandlerTargets(ep))
}

func TestInflection(t *testing.T) {
	for plural, singular := range map[string]string{
		"people":    "person",
		"countries": "country",
		"articles":  "article",
		"addresses": "address",
		"boxes":     "box",
	} {
		assert.Equal(t, singular, singularize(plural), plural)
		assert.Equal(t, plural, pluralize(singular), singular)
	}
}
