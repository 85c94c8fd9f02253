//nolint:exhaustruct
package deserialize_test

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/pasqal-io/godasse-tree/assertions/testutils"
	"github.com/pasqal-io/godasse-tree/deserialize"
	"github.com/pasqal-io/godasse-tree/deserialize/schema"
	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"github.com/pasqal-io/godasse-tree/validation"
	"gotest.tools/v3/assert"
)

type Thing struct {
	ID      int           `xml:"id,attr"`
	Name    string        `xml:"name" position:"NamePos"`
	NamePos tree.Position `xml:"-"`
	Extra   []tree.Node   `xml:",any"`
}

type List struct {
	Items []string `xml:"Items,array" item:"item"`
}

type Plain struct {
	A     int    `xml:"a,attr"`
	Known string `xml:"known"`
}

func deserializeXML[T any](t *testing.T, source string) (*T, error) {
	t.Helper()
	deserializer, err := deserialize.MakeTreeDeserializer[T](deserialize.XMLOptions(""))
	assert.NilError(t, err)
	return deserializer.DeserializeString(source)
}

// Fail unless `err` is an `UnexpectedNodeError` for `name` at the given position.
func assertUnexpected(t *testing.T, err error, kind shared.NodeKind, name string, line int, column int) *deserialize.UnexpectedNodeError {
	t.Helper()
	var unexpected *deserialize.UnexpectedNodeError
	assert.Assert(t, errors.As(err, &unexpected), "expected an unexpected node error, got %v", err)
	assert.Equal(t, unexpected.Kind, kind)
	assert.Equal(t, unexpected.Name, name)
	testutils.AssertPosition(t, unexpected.Position, line, column, name)
	assert.Assert(t, shared.IsDocumentError(err))
	assert.Assert(t, !shared.IsSchemaError(err))
	return unexpected
}

func TestRoundTripShape(t *testing.T) {
	thing, err := deserializeXML[Thing](t, `<Thing id="7"><name>Ann</name><extra>x</extra></Thing>`)
	assert.NilError(t, err)

	assert.Equal(t, thing.ID, 7)
	assert.Equal(t, thing.Name, "Ann")
	testutils.AssertPosition(t, thing.NamePos, 1, 15, "name")
	assert.Equal(t, len(thing.Extra), 1)
	assert.Equal(t, thing.Extra[0].Name(), "extra")
	assert.Equal(t, thing.Extra[0].Text(), "x")
	testutils.AssertPosition(t, thing.Extra[0].Position(), 1, 31, "extra")
}

func TestCoercionFailure(t *testing.T) {
	_, err := deserializeXML[Thing](t, `<Thing id="abc"><name>Ann</name></Thing>`)
	unexpected := assertUnexpected(t, err, shared.NodeAttribute, "id", 1, 8)
	assert.Assert(t, unexpected.Cause != nil)
	assert.ErrorContains(t, err, "at Thing, invalid value for attribute \"id\" at line 1, column 8")
}

func TestArrayWrapped(t *testing.T) {
	list, err := deserializeXML[List](t, `<List><Items><item>a</item><item>b</item></Items></List>`)
	assert.NilError(t, err)
	testutils.AssertEqualArrays(t, list.Items, []string{"a", "b"}, "items")

	list, err = deserializeXML[List](t, `<List><Items/></List>`)
	assert.NilError(t, err)
	assert.Assert(t, list.Items == nil, "collections are only allocated on first append")
}

func TestArrayWrongItemName(t *testing.T) {
	source := `<List>
  <Items>
    <item>a</item>
    <other>b</other>
  </Items>
</List>`
	_, err := deserializeXML[List](t, source)
	unexpected := assertUnexpected(t, err, shared.NodeElement, "other", 4, 5)
	assert.Equal(t, unexpected.Path, "List.Items")
}

func TestArrayWrapperAttribute(t *testing.T) {
	_, err := deserializeXML[List](t, `<List><Items kind="x"/></List>`)
	assertUnexpected(t, err, shared.NodeAttribute, "kind", 1, 14)
}

func TestUnknownNodes(t *testing.T) {
	_, err := deserializeXML[Plain](t, `<Plain a="1" b="2"><known>x</known></Plain>`)
	assertUnexpected(t, err, shared.NodeAttribute, "b", 1, 14)

	source := `<Plain a="1">
  <known>x</known>
  <unknown/>
</Plain>`
	_, err = deserializeXML[Plain](t, source)
	unexpected := assertUnexpected(t, err, shared.NodeElement, "unknown", 3, 3)
	assert.Equal(t, unexpected.Path, "Plain")
	assert.Equal(t, unexpected.Error(), `at Plain, unexpected element "unknown" at line 3, column 3`)

	plain, err := deserializeXML[Plain](t, `<Plain a=" 12 "><known> x </known></Plain>`)
	assert.NilError(t, err)
	assert.Equal(t, plain.A, 12)
	assert.Equal(t, plain.Known, " x ", "strings keep their raw text")
}

type Bags struct {
	Text     string      `xml:",text"`
	Attrs    []tree.Attr `xml:",any,attr" position:"AttrsPos"`
	AttrsPos []tree.Position
	Nodes    []tree.Node   `xml:",any"`
	Self     tree.Position `xml:",position"`
}

func TestBagsTextAndPosition(t *testing.T) {
	source := `<Bags x="1" y="2">
  hello
  <a/><b>B</b>
  world
</Bags>`
	bags, err := deserializeXML[Bags](t, source)
	assert.NilError(t, err)

	assert.Equal(t, len(bags.Attrs), 2)
	assert.Equal(t, bags.Attrs[0].Name, "x")
	assert.Equal(t, bags.Attrs[1].Value, "2")
	testutils.AssertEqualArrays(t, bags.AttrsPos, []tree.Position{{Line: 1, Column: 7}, {Line: 1, Column: 13}}, "attribute positions")

	assert.Equal(t, len(bags.Nodes), 2)
	assert.Equal(t, bags.Nodes[1].Text(), "B")

	assert.Assert(t, strings.HasPrefix(bags.Text, "hello"))
	assert.Assert(t, strings.HasSuffix(bags.Text, "world"))
	testutils.AssertPosition(t, bags.Self, 1, 1, "whole node")
}

type Color int

const (
	Red Color = iota
	Green
)

func (Color) EnumMembers() map[string]int64 {
	return map[string]int64{
		"Red":   int64(Red),
		"Green": int64(Green),
	}
}

type Scalars struct {
	Flag     bool          `xml:"flag,attr"`
	Numeric  bool          `xml:"numeric,attr"`
	Small    uint8         `xml:"small,attr"`
	Ratio    float32       `xml:"ratio"`
	When     time.Time     `xml:"when"`
	Timeout  time.Duration `xml:"timeout"`
	Color    Color         `xml:"color"`
	ID       uuid.UUID     `xml:"uuid"`
	Optional *int          `xml:"optional"`
	Tags     []string      `xml:"tag"`
}

func TestScalars(t *testing.T) {
	source := `<Scalars flag="TRUE" numeric="2" small="255">
  <ratio>0.5</ratio>
  <when>2024-05-01</when>
  <timeout>1m30s</timeout>
  <color>gReEn</color>
  <uuid>f47ac10b-58cc-4372-a567-0e02b2c3d479</uuid>
  <optional>3</optional>
  <tag>a</tag>
  <tag>b</tag>
</Scalars>`
	scalars, err := deserializeXML[Scalars](t, source)
	assert.NilError(t, err)

	assert.Equal(t, scalars.Flag, true)
	assert.Equal(t, scalars.Numeric, true)
	assert.Equal(t, scalars.Small, uint8(255))
	assert.Equal(t, scalars.Ratio, float32(0.5))
	assert.Assert(t, scalars.When.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), "got %s", scalars.When)
	assert.Equal(t, scalars.Timeout, 90*time.Second)
	assert.Equal(t, scalars.Color, Green)
	assert.Equal(t, scalars.ID, uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"))
	assert.Equal(t, *scalars.Optional, 3)
	testutils.AssertEqualArrays(t, scalars.Tags, []string{"a", "b"}, "repeated elements")

	scalars, err = deserializeXML[Scalars](t, `<Scalars flag="False" numeric="0"><when>2024-05-01 10:20:30</when></Scalars>`)
	assert.NilError(t, err)
	assert.Equal(t, scalars.Flag, false)
	assert.Equal(t, scalars.Numeric, false)
	assert.Assert(t, scalars.When.Equal(time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)), "got %s", scalars.When)
}

func TestScalarFailures(t *testing.T) {
	cases := map[string]struct {
		source string
		name   string
		column int
	}{
		"bool":     {`<Scalars flag="yes"/>`, "flag", 10},
		"overflow": {`<Scalars small="256"/>`, "small", 10},
		"enum":     {`<Scalars><color>Blue</color></Scalars>`, "color", 10},
		"uuid":     {`<Scalars><uuid>nope</uuid></Scalars>`, "uuid", 10},
	}
	for name, example := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := deserializeXML[Scalars](t, example.source)
			var unexpected *deserialize.UnexpectedNodeError
			assert.Assert(t, errors.As(err, &unexpected), "got %v", err)
			assert.Equal(t, unexpected.Name, example.name)
			assert.Equal(t, unexpected.Position.Column, example.column)
			assert.Assert(t, unexpected.Cause != nil)
			pattern := regexp.MustCompile(fmt.Sprintf(`^at Scalars(\.%s)?, invalid value for (attribute|element) "%s" at line 1, column %d`, example.name, example.name, example.column))
			testutils.AssertRegexp(t, err.Error(), *pattern, "coercion message")
		})
	}
}

func TestScalarElementMustBeFlat(t *testing.T) {
	_, err := deserializeXML[Plain](t, `<Plain><known lang="en">x</known></Plain>`)
	assertUnexpected(t, err, shared.NodeAttribute, "lang", 1, 15)

	_, err = deserializeXML[Plain](t, `<Plain><known><b/></known></Plain>`)
	assertUnexpected(t, err, shared.NodeElement, "b", 1, 15)
}

type Address struct {
	City string        `xml:"city"`
	Pos  tree.Position `xml:",position"`
}

type Person struct {
	Name      string     `xml:"name,attr"`
	Home      *Address   `xml:"home"`
	Work      Address    `xml:"work"`
	Previous  []Address  `xml:"Previous,array"`
	Visited   []*Address `xml:"visited"`
	Unvisited []*Address `xml:"unvisited"`
}

func TestNestedComplexTypes(t *testing.T) {
	source := `<Person name="Ann">
  <home><city>Paris</city></home>
  <work><city>Lyon</city></work>
  <Previous>
    <Address><city>Nice</city></Address>
    <Address><city>Lille</city></Address>
  </Previous>
  <visited><city>Rome</city></visited>
</Person>`
	person, err := deserializeXML[Person](t, source)
	assert.NilError(t, err)

	expected := Person{
		Name: "Ann",
		Home: &Address{City: "Paris", Pos: tree.Position{Line: 2, Column: 3}},
		Work: Address{City: "Lyon", Pos: tree.Position{Line: 3, Column: 3}},
		Previous: []Address{
			{City: "Nice", Pos: tree.Position{Line: 5, Column: 5}},
			{City: "Lille", Pos: tree.Position{Line: 6, Column: 5}},
		},
		Visited: []*Address{{City: "Rome", Pos: tree.Position{Line: 8, Column: 3}}},
	}
	assert.DeepEqual(t, *person, expected)
	assert.Assert(t, person.Unvisited == nil)

	_, err = deserializeXML[Person](t, `<Person><work><town>Lyon</town></work></Person>`)
	unexpected := assertUnexpected(t, err, shared.NodeElement, "town", 1, 15)
	assert.Equal(t, unexpected.Path, "Person.work")
}

type Located struct {
	Value string `xml:",text"`
	at    tree.Position
}

func (l *Located) SetPosition(position tree.Position) {
	l.at = position
}

type Locations struct {
	Entries []Located `xml:"entry"`
}

func TestPositionSetter(t *testing.T) {
	locations, err := deserializeXML[Locations](t, "<Locations>\n <entry>a</entry>\n <entry>b</entry>\n</Locations>")
	assert.NilError(t, err)
	assert.Equal(t, len(locations.Entries), 2)
	assert.Equal(t, locations.Entries[1].Value, "b")
	testutils.AssertPosition(t, locations.Entries[1].at, 3, 2, "second entry")
}

type Defaults struct {
	Port   int `xml:"port,attr"`
	secret string
}

func (d *Defaults) Initialize() error {
	d.Port = 8080
	d.secret = "hidden"
	return nil
}

type Email struct {
	Address string `xml:",text"`
}

func (e *Email) Validate() error {
	if strings.Contains(e.Address, "@") {
		return nil
	}
	return fmt.Errorf("invalid email %q", e.Address)
}

type Contact struct {
	Email Email `xml:"email"`
}

type Broken struct {
	Port int `xml:"port,attr"`
}

func (b *Broken) Initialize() error {
	return errors.New("broken initializer")
}

var _ validation.Initializer = &Defaults{}
var _ validation.Validator = &Email{}

func TestHooks(t *testing.T) {
	defaults, err := deserializeXML[Defaults](t, `<Defaults/>`)
	assert.NilError(t, err)
	assert.Equal(t, defaults.Port, 8080)
	assert.Equal(t, defaults.secret, "hidden")

	defaults, err = deserializeXML[Defaults](t, `<Defaults port="80"/>`)
	assert.NilError(t, err)
	assert.Equal(t, defaults.Port, 80)

	_, err = deserializeXML[Contact](t, `<Contact><email>ann@example.com</email></Contact>`)
	assert.NilError(t, err)

	_, err = deserializeXML[Contact](t, `<Contact><email>ann</email></Contact>`)
	var validationErr validation.Error
	assert.Assert(t, errors.As(err, &validationErr), "got %v", err)
	assert.Equal(t, validationErr.Path, "Contact.email")
	assert.ErrorContains(t, err, "invalid email \"ann\"")

	_, err = deserializeXML[Broken](t, `<Broken/>`)
	var custom deserialize.CustomDeserializerError
	assert.Assert(t, errors.As(err, &custom), "got %v", err)
	assert.Equal(t, custom.Operation, "initializer")
	assert.ErrorContains(t, err, "broken initializer")
	testutils.AssertRegexp(t, err.Error(), *regexp.MustCompile(`^at Broken, encountered an error while initializing`), "initializer message")
}

// A set of names, rejecting duplicates.
type Names struct {
	names []string
}

func (n *Names) Append(name string) error {
	for _, existing := range n.names {
		if existing == name {
			return fmt.Errorf("duplicate name %s", name)
		}
	}
	n.names = append(n.names, name)
	return nil
}

type Roster struct {
	Names  Names  `xml:"name"`
	Others *Names `xml:"Others,array" item:"name"`
}

func TestAppenderCollections(t *testing.T) {
	roster, err := deserializeXML[Roster](t, `<Roster><name>a</name><name>b</name><Others><name>c</name></Others></Roster>`)
	assert.NilError(t, err)
	testutils.AssertEqualArrays(t, roster.Names.names, []string{"a", "b"}, "names")
	assert.Assert(t, roster.Others != nil)
	testutils.AssertEqualArrays(t, roster.Others.names, []string{"c"}, "others")

	roster, err = deserializeXML[Roster](t, `<Roster/>`)
	assert.NilError(t, err)
	assert.Assert(t, roster.Others == nil)

	_, err = deserializeXML[Roster](t, `<Roster><name>a</name><name>a</name></Roster>`)
	unexpected := assertUnexpected(t, err, shared.NodeElement, "name", 1, 23)
	assert.ErrorContains(t, unexpected.Cause, "duplicate name a")
}

type TwoBags struct {
	First  []tree.Node `xml:",any"`
	Second []tree.Node `xml:",any"`
}

type HasTwoBags struct {
	Inner TwoBags `xml:"inner"`
}

type Embedded struct {
	Name string
}

type ViaPointer struct {
	*Embedded
}

func (*ViaPointer) DeclareSchema(d *schema.Declaration) {
	d.Element("Name", "name")
}

func TestSchemaErrorsSurfaceEarly(t *testing.T) {
	_, err := deserialize.MakeTreeDeserializer[TwoBags](deserialize.XMLOptions(""))
	assert.Assert(t, shared.IsSchemaError(err), "got %v", err)
	assert.Assert(t, !shared.IsDocumentError(err))

	// Reachable types are checked before reading any document.
	_, err = deserialize.MakeTreeDeserializer[HasTwoBags](deserialize.XMLOptions(""))
	assert.Assert(t, shared.IsSchemaError(err), "got %v", err)

	_, err = deserialize.MakeTreeDeserializer[int](deserialize.XMLOptions(""))
	assert.Assert(t, shared.IsSchemaError(err), "got %v", err)

	// Fields promoted through an embedded pointer cannot be filled.
	_, err = deserialize.MakeTreeDeserializer[ViaPointer](deserialize.XMLOptions(""))
	assert.Assert(t, shared.IsSchemaError(err), "got %v", err)
	testutils.AssertRegexp(t, err.Error(), *regexp.MustCompile(`promoted through a pointer`), "embedded pointer")
}

func TestDeserializeEntryPoint(t *testing.T) {
	root := testutils.ParseXML(t, `<Thing id="7"><name>Ann</name></Thing>`)
	thing, err := deserialize.Deserialize[Thing](root)
	assert.NilError(t, err)
	assert.Equal(t, thing.ID, 7)
	assert.Assert(t, thing.Extra == nil)

	_, err = deserialize.Deserialize[Thing](nil)
	var input *deserialize.InputError
	assert.Assert(t, errors.As(err, &input))
}

func TestRootName(t *testing.T) {
	options := deserialize.XMLOptions("config.xml")
	options.RootName = "Thing"
	deserializer, err := deserialize.MakeTreeDeserializer[Thing](options)
	assert.NilError(t, err)

	_, err = deserializer.DeserializeString(`<Thing id="1"/>`)
	assert.NilError(t, err)

	_, err = deserializer.DeserializeString(`<Other id="1"/>`)
	unexpected := assertUnexpected(t, err, shared.NodeElement, "Other", 1, 1)
	assert.Equal(t, unexpected.Path, "config.xml.Thing")
}

func TestMalformedInput(t *testing.T) {
	deserializer, err := deserialize.MakeTreeDeserializer[Thing](deserialize.XMLOptions(""))
	assert.NilError(t, err)

	for _, source := range []string{"", "<Thing>", "<a/><b/>"} {
		_, err = deserializer.DeserializeString(source)
		var input *deserialize.InputError
		assert.Assert(t, errors.As(err, &input), "source %q, got %v", source, err)
		assert.Assert(t, shared.IsDocumentError(err))
	}

	_, err = deserializer.DeserializeReader(strings.NewReader(`<Thing id="3"/>`))
	assert.NilError(t, err)

	noDriver, err := deserialize.MakeTreeDeserializer[Thing](deserialize.Options{})
	assert.NilError(t, err)
	_, err = noDriver.DeserializeString(`<Thing/>`)
	assert.ErrorContains(t, err, "please specify a driver")
}

func TestYAMLDocuments(t *testing.T) {
	source := `Thing:
  "@id": 7
  name: Ann
  extra:
    "@kind": note
    "#text": x
`
	deserializer, err := deserialize.MakeTreeDeserializer[Thing](deserialize.YAMLOptions("thing.yaml"))
	assert.NilError(t, err)
	thing, err := deserializer.DeserializeString(source)
	assert.NilError(t, err)

	assert.Equal(t, thing.ID, 7)
	assert.Equal(t, thing.Name, "Ann")
	testutils.AssertPosition(t, thing.NamePos, 3, 3, "name")
	assert.Equal(t, len(thing.Extra), 1)
	assert.Equal(t, thing.Extra[0].Text(), "x")

	_, err = deserializer.DeserializeString("Thing:\n  \"@id\": seven\n")
	assertUnexpected(t, err, shared.NodeAttribute, "id", 2, 3)
}

// The same schema as Thing, declared without tags.
type DeclaredThing struct {
	ID      int
	Name    string
	NamePos tree.Position
	Extra   []tree.Node
}

func (*DeclaredThing) DeclareSchema(d *schema.Declaration) {
	d.Attribute("ID", "id").
		Element("Name", "name").WithPosition("NamePos").
		AnyElements("Extra")
}

func TestDeclarerMatchesTags(t *testing.T) {
	source := "<Thing id=\"7\">\n  <name>Ann</name>\n  <extra>x</extra>\n</Thing>"
	tagged, err := deserializeXML[Thing](t, source)
	assert.NilError(t, err)
	declared, err := deserializeXML[DeclaredThing](t, source)
	assert.NilError(t, err)

	assert.DeepEqual(t, *tagged, Thing(*declared), cmpopts.IgnoreFields(Thing{}, "Extra"))
	assert.Equal(t, len(declared.Extra), len(tagged.Extra))
	assert.Equal(t, declared.Extra[0].Name(), tagged.Extra[0].Name())
}

func TestConcurrentDeserialization(t *testing.T) {
	deserializer, err := deserialize.MakeTreeDeserializer[Person](deserialize.XMLOptions(""))
	assert.NilError(t, err)

	const goroutines = 16
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			person, err := deserializer.DeserializeString(fmt.Sprintf(`<Person name="p%d"><work><city>c%d</city></work></Person>`, i, i))
			if err == nil && person.Work.City != fmt.Sprint("c", i) {
				err = fmt.Errorf("unexpected city %s", person.Work.City)
			}
			results <- err
		}(i)
	}
	for i := 0; i < goroutines; i++ {
		assert.NilError(t, <-results)
	}
}
