package flight

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/windfalllabs/spatialdb/pkg/db"
	"github.com/windfalllabs/spatialdb/pkg/frame"
	"github.com/windfalllabs/spatialdb/pkg/spatialite"
	"github.com/windfalllabs/spatialdb/pkg/srs"
)

const geometryColumn = "geometry"

// Incoming DoPut streams larger than this spill to parquet instead of
// staying buffered.
const spillRows = 1000 * 1000

type SpatialFlightServer struct {
	flight.BaseFlightServer
	db *spatialite.SpatiaLiteDB
}

func NewSpatialFlightServer(db *spatialite.SpatiaLiteDB) *SpatialFlightServer {
	return &SpatialFlightServer{
		db: db,
	}
}

// DoGet runs the SQL carried in the ticket and streams the result. The
// geometry column travels as WKT text.
func (s *SpatialFlightServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	query := string(ticket.GetTicket())
	if query == "" {
		return fmt.Errorf("empty ticket: expected a SQL query")
	}

	gdf, err := s.db.Query(stream.Context(), query)
	if err != nil {
		return err
	}
	defer gdf.Release()

	df := gdf.DataFrame
	if gdf.HasGeometry() {
		dropped, err := df.DropColumn(geometryColumn)
		if err != nil {
			return err
		}
		df, err = dropped.WithStringColumn(geometryColumn, gdf.WKTValues())
		dropped.Release()
		if err != nil {
			return err
		}
		defer df.Release()
	}

	records := df.Records()
	if len(records) == 0 {
		return fmt.Errorf("query produced no records")
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(records[0].Schema()))
	defer writer.Close()

	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			return err
		}
	}

	return nil
}

// LoadCommand is the DoPut descriptor command: the target table and how
// to treat an existing one. A non-zero SRID loads the stream's geometry
// column (WKT text) as a registered spatial column.
type LoadCommand struct {
	Table    string `json:"table"`
	IfExists string `json:"if_exists"`
	SRID     int    `json:"srid"`
}

// PutResponse reports the outcome of a DoPut load.
type PutResponse struct {
	Table      string `json:"table"`
	Rows       int    `json:"rows"`
	Statements int    `json:"statements"`
}

// DoPut reads a record stream and loads it as a table.
func (s *SpatialFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	ctx := stream.Context()

	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer reader.Release()

	desc := reader.LatestFlightDescriptor()
	if desc == nil || len(desc.Cmd) == 0 {
		return fmt.Errorf("missing flight descriptor command")
	}

	var cmd LoadCommand
	if err := json.Unmarshal(desc.Cmd, &cmd); err != nil {
		return fmt.Errorf("failed to parse descriptor command: %v", err)
	}
	if cmd.Table == "" {
		return fmt.Errorf("descriptor command names no table")
	}

	spill, err := NewParquetSpill()
	if err != nil {
		return err
	}
	defer spill.Cleanup()

	var records []arrow.RecordBatch
	var buffered int64

	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		records = append(records, rec)
		buffered += rec.NumRows()

		if buffered >= spillRows {
			log.Printf("Buffered %d rows for %s, spilling to parquet", buffered, cmd.Table)
			for _, r := range records {
				if err := spill.Add(r); err != nil {
					return err
				}
				r.Release()
			}
			records = nil
			buffered = 0
		}
	}
	if err := reader.Err(); err != nil {
		return err
	}

	if spill.HasSpilled() {
		for _, r := range records {
			if err := spill.Add(r); err != nil {
				return err
			}
			r.Release()
		}
		records, err = spill.ReadRecords(ctx)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		return fmt.Errorf("no records received")
	}

	df, err := frame.NewDataFrame(records)
	if err != nil {
		return err
	}
	defer df.Release()

	mode := db.IfExists(cmd.IfExists)
	if mode == "" {
		mode = db.Fail
	}

	var ledger *frame.Ledger
	if cmd.SRID != 0 {
		gdf, err := geoFrameFromStream(df, cmd.SRID)
		if err != nil {
			return err
		}
		ledger, err = s.db.LoadGeoDataFrame(ctx, gdf, cmd.Table, cmd.SRID, spatialite.LoadGeoOptions{IfExists: mode})
		if err != nil {
			return err
		}
	} else {
		ledger, err = s.db.LoadDataFrame(ctx, df, cmd.Table, db.LoadOptions{IfExists: mode})
		if err != nil {
			return err
		}
	}

	resp, err := json.Marshal(PutResponse{
		Table:      cmd.Table,
		Rows:       df.NumRows(),
		Statements: ledger.Len(),
	})
	if err != nil {
		return err
	}

	return stream.Send(&flight.PutResult{AppMetadata: resp})
}

// geoFrameFromStream parses the WKT geometry column of an uploaded
// frame into a spatial one.
func geoFrameFromStream(df *frame.DataFrame, srid int) (*frame.GeoDataFrame, error) {
	if !df.HasColumn(geometryColumn) {
		return nil, fmt.Errorf("srid given but stream carries no %s column", geometryColumn)
	}
	return frame.GeoDataFrameFromWKT(df, geometryColumn, srs.Ref{SRID: srid})
}

// ListFlights streams one entry per table. The endpoint ticket holds
// the SQL that DoGet would need to fetch the table.
func (s *SpatialFlightServer) ListFlights(c *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	names, err := s.db.TableNames(stream.Context())
	if err != nil {
		return err
	}

	for _, name := range names {
		info := &flight.FlightInfo{
			FlightDescriptor: &flight.FlightDescriptor{
				Type: flight.DescriptorPATH,
				Path: []string{name},
			},
			Endpoint: []*flight.FlightEndpoint{{
				Ticket: &flight.Ticket{Ticket: []byte("SELECT * FROM " + s.db.Dialect().Quote(name))},
			}},
			TotalRecords: -1,
			TotalBytes:   -1,
		}
		if err := stream.Send(info); err != nil {
			return err
		}
	}

	return nil
}
