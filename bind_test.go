package shatter_test

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shatterdev/shatter"
)

func okHandler(body string) shatter.HandlerFunc {
	return func(ctx *shatter.CallCtx) (*shatter.Response, error) {
		return shatter.Text(body, http.StatusOK), nil
	}
}

func TestBind_and_dispatch(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("EchoAPI",
		shatter.Route("/echo", "Echo", stringSig(shatter.Param[sigBody]("body"))),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d,
		shatter.ProvideFunc("Echo", func(ctx *shatter.CallCtx) (*shatter.Response, error) {
			body, ok := shatter.Get[sigBody](ctx)
			require.True(t, ok)
			return shatter.Text(body.Name, http.StatusOK), nil
		}),
	)

	bm, err := impl.Bind()
	require.NoError(t, err)
	assert.Equal(t, []string{"/echo"}, bm.Paths())

	resp, err := bm.Dispatch("/echo", &shatter.RequestCtx{Body: []byte(`{"name":"gopher"}`)})
	require.NoError(t, err)

	payload, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "gopher", payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestBind_is_idempotent(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("OnceAPI", shatter.Route("/once", "Once", stringSig()))
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d, shatter.ProvideFunc("Once", okHandler("ok")))

	first, err := impl.Bind()
	require.NoError(t, err)
	second, err := impl.Bind()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestBind_concurrent_callers_share_one_mapping(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("OnceAPI", shatter.Route("/once", "Once", stringSig()))
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d, shatter.ProvideFunc("Once", okHandler("ok")))

	const callers = 16
	var wg sync.WaitGroup
	mappings := make([]*shatter.BoundMapping, callers)
	errs := make([]error, callers)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			mappings[i], errs[i] = impl.Bind()
		}()
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, mappings[0], mappings[i])
	}
}

func TestBind_unimplemented_method(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("GapAPI", shatter.Route("/gap", "Gap", stringSig()))
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d)

	_, err := impl.Bind()
	var unimpl *shatter.UnimplementedMethodError
	require.ErrorAs(t, err, &unimpl)
	assert.Equal(t, "Gap", unimpl.Method)
	assert.Equal(t, "GapAPIImpl", unimpl.Implementation)
}

func TestBind_default_handler_from_base_chain(t *testing.T) {
	t.Parallel()

	base := shatter.NewDescriptor("BaseAPI",
		shatter.Route("/ping", "Ping", stringSig(), shatter.WithDefault(okHandler("pong"))),
	)
	require.NoError(t, base.Finalize())

	// The child redeclares the method without a default of its own; binding
	// falls through to the default declared on the base.
	child := shatter.NewDescriptor("ChildAPI", shatter.Route("/ping", "Ping", stringSig()))
	require.NoError(t, child.Finalize(base))

	impl := shatter.NewImplementation(child)
	bm, err := impl.Bind()
	require.NoError(t, err)

	resp, err := bm.Dispatch("/ping", &shatter.RequestCtx{})
	require.NoError(t, err)

	payload, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "pong", payload)
}

func TestBind_provided_handler_wins_over_default(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("PingAPI",
		shatter.Route("/ping", "Ping", stringSig(), shatter.WithDefault(okHandler("default"))),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d, shatter.ProvideFunc("Ping", okHandler("provided")))
	bm, err := impl.Bind()
	require.NoError(t, err)

	resp, err := bm.Dispatch("/ping", &shatter.RequestCtx{})
	require.NoError(t, err)

	payload, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "provided", payload)
}

func TestBind_incompatible_signature(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("StrictAPI",
		shatter.Route("/strict", "Strict", stringSig(shatter.Param[sigBody]("body"))),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d,
		shatter.Provide("Strict", stringSig(), okHandler("nope")), // missing the required parameter
	)

	_, err := impl.Bind()
	var incompat *shatter.IncompatibleImplementationError
	require.ErrorAs(t, err, &incompat)
	assert.Equal(t, "Strict", incompat.Method)
}

func TestBind_implementation_chain(t *testing.T) {
	t.Parallel()

	base := shatter.NewDescriptor("BaseAPI",
		shatter.Route("/a", "A", stringSig()),
		shatter.Route("/b", "B", stringSig()),
	)
	require.NoError(t, base.Finalize())

	child := shatter.NewDescriptor("ChildAPI")
	require.NoError(t, child.Finalize(base))

	parentImpl := shatter.NewImplementation(base,
		shatter.ProvideFunc("A", okHandler("parent-a")),
		shatter.ProvideFunc("B", okHandler("parent-b")),
	)
	childImpl := shatter.NewImplementation(child,
		shatter.WithBase(parentImpl),
		shatter.ProvideFunc("B", okHandler("child-b")),
	)

	bm, err := childImpl.Bind()
	require.NoError(t, err)

	tests := map[string]string{
		"/a": "parent-a", // inherited from the base implementation
		"/b": "child-b",  // overridden locally
	}
	for path, want := range tests {
		resp, err := bm.Dispatch(path, &shatter.RequestCtx{})
		require.NoError(t, err)
		payload, err := resp.Body()
		require.NoError(t, err)
		assert.Equal(t, want, payload)
	}
}

func TestBind_diamond_default_uses_left_base(t *testing.T) {
	t.Parallel()

	left := shatter.NewDescriptor("LeftAPI",
		shatter.Route("/shared", "Shared", stringSig(), shatter.WithDefault(okHandler("left"))),
	)
	require.NoError(t, left.Finalize())

	right := shatter.NewDescriptor("RightAPI",
		shatter.Route("/shared", "Shared", stringSig(), shatter.WithDefault(okHandler("right"))),
	)
	require.NoError(t, right.Finalize())

	combined := shatter.NewDescriptor("CombinedAPI")
	require.NoError(t, combined.Finalize(left, right))

	impl := shatter.NewImplementation(combined)
	bm, err := impl.Bind()
	require.NoError(t, err)

	// Bases merge left to right, so the left base's chain stays reachable
	// and its default handler serves the method.
	resp, err := bm.Dispatch("/shared", &shatter.RequestCtx{})
	require.NoError(t, err)

	payload, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "left", payload)
}

func TestDispatch_unknown_path(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("SmallAPI", shatter.Route("/known", "Known", stringSig()))
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d, shatter.ProvideFunc("Known", okHandler("ok")))
	bm, err := impl.Bind()
	require.NoError(t, err)

	_, err = bm.Dispatch("/unknown", &shatter.RequestCtx{})
	var notFound *shatter.PathNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/unknown", notFound.Path)
}

func TestDispatch_validation_failure_is_a_response(t *testing.T) {
	t.Parallel()

	type createBody struct {
		shatter.RequestBody

		Name string `json:"name" required:"true"`
	}

	d := shatter.NewDescriptor("CreateAPI",
		shatter.Route("/create", "Create", stringSig(shatter.Param[createBody]("body"))),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d, shatter.ProvideFunc("Create", okHandler("created")))
	bm, err := impl.Bind()
	require.NoError(t, err)

	// A failing request body is not a dispatch error: it becomes a 422.
	resp, err := bm.Dispatch("/create", &shatter.RequestCtx{Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode())

	data, ok := resp.Payload().(shatter.ValidationErrorData)
	require.True(t, ok)
	assert.Equal(t, "request_body", data.Kind)
	require.Len(t, data.Detail, 1)
	assert.Equal(t, []string{"name"}, data.Detail[0].Loc)
	assert.Equal(t, "missing", data.Detail[0].Kind)
}

func TestProvideTyped(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("TypedAPI",
		shatter.Route("/typed", "Typed", stringSig(shatter.Param[sigBody]("body"))),
	)
	require.NoError(t, d.Finalize())

	impl := shatter.NewImplementation(d,
		shatter.ProvideTyped("Typed", func(body sigBody) (*shatter.Response, error) {
			return shatter.Text("hello "+body.Name, http.StatusOK), nil
		}, "body"),
	)

	bm, err := impl.Bind()
	require.NoError(t, err)

	resp, err := bm.Dispatch("/typed", &shatter.RequestCtx{Body: []byte(`{"name":"gopher"}`)})
	require.NoError(t, err)

	payload, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "hello gopher", payload)
}

func TestBind_declaration_errors(t *testing.T) {
	t.Parallel()

	d := shatter.NewDescriptor("DupAPI", shatter.Route("/x", "X", stringSig()))
	require.NoError(t, d.Finalize())

	tests := map[string][]shatter.ImplementationOption{
		"method provided twice": {
			shatter.ProvideFunc("X", okHandler("one")),
			shatter.ProvideFunc("X", okHandler("two")),
		},
		"nil handler": {
			shatter.ProvideFunc("X", nil),
		},
		"sub-API provided twice": {
			shatter.ProvideFunc("X", okHandler("ok")),
			shatter.ProvideSubAPI("Sub", shatter.NewImplementation(d)),
			shatter.ProvideSubAPI("Sub", shatter.NewImplementation(d)),
		},
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			opts := opts
			t.Parallel()

			impl := shatter.NewImplementation(d, opts...)
			_, err := impl.Bind()

			var declErr *shatter.DeclarationError
			assert.ErrorAs(t, err, &declErr)
		})
	}
}

func subDescriptor(t *testing.T) *shatter.Descriptor {
	t.Helper()
	nested := shatter.NewDescriptor("NestedAPI",
		shatter.Route("/sub/hello", "Hello", stringSig()),
	)
	require.NoError(t, nested.Finalize())
	return nested
}

func TestBind_extension(t *testing.T) {
	t.Parallel()

	t.Run("stable sub-API", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		nestedImpl := shatter.NewImplementation(nested,
			shatter.ProvideFunc("Hello", okHandler("from sub")),
		)
		impl := shatter.NewImplementation(outer, shatter.ProvideSubAPI("Sub", nestedImpl))

		bm, err := impl.Bind()
		require.NoError(t, err)

		resp, err := bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
		require.NoError(t, err)
		payload, err := resp.Body()
		require.NoError(t, err)
		assert.Equal(t, "from sub", payload)
	})

	t.Run("incomplete stable sub-API fails at bind time", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		// The nested implementation provides nothing, so the parent's own
		// Bind surfaces the failure during setup, not on first dispatch.
		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPI("Sub", shatter.NewImplementation(nested)),
		)

		_, err := impl.Bind()
		var unimpl *shatter.UnimplementedMethodError
		require.ErrorAs(t, err, &unimpl)
		assert.Equal(t, "Hello", unimpl.Method)
	})

	t.Run("missing sub-API", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		impl := shatter.NewImplementation(outer)
		_, err := impl.Bind()

		var unimpl *shatter.UnimplementedMethodError
		require.ErrorAs(t, err, &unimpl)
		assert.Equal(t, "Sub", unimpl.Method)
	})

	t.Run("sub-API of the wrong descriptor", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		other := shatter.NewDescriptor("OtherAPI", shatter.Route("/other", "Other", stringSig()))
		require.NoError(t, other.Finalize())

		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPI("Sub", shatter.NewImplementation(other)),
		)
		_, err := impl.Bind()

		var incompat *shatter.IncompatibleImplementationError
		assert.ErrorAs(t, err, &incompat)
	})

	t.Run("cached factory resolves once", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		nestedImpl := shatter.NewImplementation(nested,
			shatter.ProvideFunc("Hello", okHandler("cached")),
		)

		var calls atomic.Int32
		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPIFactory("Sub", func() *shatter.Implementation {
				calls.Add(1)
				return nestedImpl
			}, true),
		)

		bm, err := impl.Bind()
		require.NoError(t, err)

		for n := 0; n < 3; n++ {
			_, err := bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("uncached factory resolves per dispatch", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		nestedImpl := shatter.NewImplementation(nested,
			shatter.ProvideFunc("Hello", okHandler("fresh")),
		)

		var calls atomic.Int32
		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPIFactory("Sub", func() *shatter.Implementation {
				calls.Add(1)
				return nestedImpl
			}, false),
		)

		bm, err := impl.Bind()
		require.NoError(t, err)

		for n := 0; n < 3; n++ {
			_, err := bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("concurrent dispatch into a stable sub-API", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		nestedImpl := shatter.NewImplementation(nested,
			shatter.ProvideFunc("Hello", okHandler("from sub")),
		)
		impl := shatter.NewImplementation(outer, shatter.ProvideSubAPI("Sub", nestedImpl))

		bm, err := impl.Bind()
		require.NoError(t, err)

		const callers = 16
		var wg sync.WaitGroup
		errs := make([]error, callers)

		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, errs[i] = bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
			}()
		}
		close(start)
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
		}
	})

	t.Run("concurrent dispatch resolves a shared factory child safely", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		// One implementation instance handed out by every factory call, so
		// concurrent first dispatches race to bind it.
		nestedImpl := shatter.NewImplementation(nested,
			shatter.ProvideFunc("Hello", okHandler("from sub")),
		)
		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPIFactory("Sub", func() *shatter.Implementation {
				return nestedImpl
			}, false),
		)

		bm, err := impl.Bind()
		require.NoError(t, err)

		const callers = 16
		var wg sync.WaitGroup
		errs := make([]error, callers)

		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, errs[i] = bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
			}()
		}
		close(start)
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
		}
	})

	t.Run("factory returning nil", func(t *testing.T) {
		t.Parallel()

		nested := subDescriptor(t)
		outer := shatter.NewDescriptor("OuterAPI", shatter.ExtendRoute("Sub", nested))
		require.NoError(t, outer.Finalize())

		impl := shatter.NewImplementation(outer,
			shatter.ProvideSubAPIFactory("Sub", func() *shatter.Implementation { return nil }, false),
		)

		bm, err := impl.Bind()
		require.NoError(t, err)

		_, err = bm.Dispatch("/sub/hello", &shatter.RequestCtx{})
		var unimpl *shatter.UnimplementedMethodError
		assert.ErrorAs(t, err, &unimpl)
	})
}
