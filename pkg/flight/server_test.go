package flight

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

func startTestServer(t *testing.T) (*spatialite.SpatiaLiteDB, flight.Client) {
	t.Helper()

	db, err := spatialite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Skipf("mod_spatialite unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	server := flight.NewServerWithMiddleware(nil, grpc.Creds(insecure.NewCredentials()))
	server.RegisterFlightService(NewSpatialFlightServer(db))

	require.NoError(t, server.Init("127.0.0.1:0"))
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("Server panicked: %v\n", r)
			}
		}()
		if err := server.Serve(); err != nil {
			fmt.Printf("Server Serve failed: %v\n", err)
		}
	}()
	t.Cleanup(server.Shutdown)

	time.Sleep(100 * time.Millisecond)

	client, err := flight.NewClientWithMiddleware(
		server.Addr().String(), nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return db, client
}

func TestDoGet(t *testing.T) {
	db, client := startTestServer(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "CREATE TABLE stations (name TEXT)")
	require.NoError(t, err)
	_, err = db.Exec(ctx, "SELECT AddGeometryColumn('stations', 'geometry', 4326, 'POINT', 'XY')")
	require.NoError(t, err)
	_, err = db.Exec(ctx,
		"INSERT INTO stations VALUES ('alpha', GeomFromText('POINT(-114.01 46.87)', 4326)), ('bravo', GeomFromText('POINT(-112.02 46.59)', 4326))")
	require.NoError(t, err)

	stream, err := client.DoGet(ctx, &flight.Ticket{
		Ticket: []byte("SELECT * FROM stations ORDER BY name"),
	})
	require.NoError(t, err)

	reader, err := flight.NewRecordReader(stream)
	require.NoError(t, err)
	defer reader.Release()

	var results []arrow.RecordBatch
	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		results = append(results, rec)
	}
	require.NoError(t, reader.Err())
	require.Len(t, results, 1)
	defer results[0].Release()

	assert.Equal(t, int64(2), results[0].NumRows())

	// The geometry column streams as WKT text.
	schema := results[0].Schema()
	geomFields, found := schema.FieldsByName("geometry")
	require.True(t, found)
	assert.Equal(t, arrow.BinaryTypes.String, geomFields[0].Type)

	geomIdx := schema.FieldIndices("geometry")[0]
	wktCol := results[0].Column(geomIdx).(*array.String)
	assert.Contains(t, wktCol.Value(0), "POINT")
}

func TestDoPut(t *testing.T) {
	db, client := startTestServer(t)
	ctx := context.Background()

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "population", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).AppendValues([]string{"missoula", "helena"}, nil)
	builder.Field(1).(*array.Int64Builder).AppendValues([]int64{73489, 32091}, nil)

	rec := builder.NewRecordBatch()
	defer rec.Release()

	stream, err := client.DoPut(ctx)
	require.NoError(t, err)

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(schema))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  []byte(`{"table": "cities", "if_exists": "replace"}`),
	})
	require.NoError(t, writer.Write(rec))
	require.NoError(t, writer.Close())
	require.NoError(t, stream.CloseSend())

	result, err := stream.Recv()
	require.NoError(t, err)

	var resp PutResponse
	require.NoError(t, json.Unmarshal(result.AppMetadata, &resp))
	assert.Equal(t, "cities", resp.Table)
	assert.Equal(t, 2, resp.Rows)

	out, err := db.Query(ctx, "SELECT count(*) AS n FROM cities")
	require.NoError(t, err)
	defer out.Release()

	n, err := out.Value(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDoPutSpatial(t *testing.T) {
	db, client := startTestServer(t)
	ctx := context.Background()

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "geometry", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).Append("alpha")
	builder.Field(1).(*array.StringBuilder).Append("POINT(-114.01 46.87)")

	rec := builder.NewRecordBatch()
	defer rec.Release()

	stream, err := client.DoPut(ctx)
	require.NoError(t, err)

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(schema))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  []byte(`{"table": "sites", "if_exists": "replace", "srid": 4326}`),
	})
	require.NoError(t, writer.Write(rec))
	require.NoError(t, writer.Close())
	require.NoError(t, stream.CloseSend())

	_, err = stream.Recv()
	require.NoError(t, err)

	ok, err := db.IsSpatialTable(ctx, "sites")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := db.Query(ctx, "SELECT * FROM sites")
	require.NoError(t, err)
	defer out.Release()
	assert.True(t, out.HasGeometry())
}

func TestListFlights(t *testing.T) {
	db, client := startTestServer(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "CREATE TABLE parcels (pin TEXT)")
	require.NoError(t, err)

	stream, err := client.ListFlights(ctx, &flight.Criteria{})
	require.NoError(t, err)

	tickets := make(map[string]string)
	for {
		info, err := stream.Recv()
		if err != nil {
			break
		}
		require.NotEmpty(t, info.FlightDescriptor.Path)
		require.NotEmpty(t, info.Endpoint)
		tickets[info.FlightDescriptor.Path[0]] = string(info.Endpoint[0].Ticket.Ticket)
	}

	// Tickets carry SQL-quoted identifiers, ready for DoGet.
	assert.Equal(t, `SELECT * FROM "parcels"`, tickets["parcels"])
}
