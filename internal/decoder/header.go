// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decoder

import (
	"fmt"
	"time"

	"osmstream.dev/pbf/internal/pb"
	"osmstream.dev/pbf/model"
)

// headerNanoDegree is the fixed-point scale HeaderBBox coordinates use: they
// are always nanodegrees regardless of the enclosing PrimitiveBlock's
// granularity, so offset is always 0 and granularity is always 1.
const headerNanoDegree = 1

// ParseHeaderBlock decodes a HeaderBlock's bytes into a model.Header.
func ParseHeaderBlock(raw []byte) (model.Header, error) {
	hb, err := pb.UnmarshalHeaderBlock(raw)
	if err != nil {
		return model.Header{}, fmt.Errorf("decoder: unmarshal header block: %w", err)
	}

	header := model.Header{
		RequiredFeatures:                 hb.RequiredFeatures,
		OptionalFeatures:                 hb.OptionalFeatures,
		WritingProgram:                   hb.WritingProgram,
		Source:                           hb.Source,
		OsmosisReplicationSequenceNumber: hb.OsmosisReplicationSequenceNumber,
		OsmosisReplicationBaseURL:        hb.OsmosisReplicationBaseURL,
	}

	if hb.Bbox != nil {
		header.BoundingBox = &model.BoundingBox{
			Left:   model.ToDegrees(0, headerNanoDegree, hb.Bbox.Left),
			Right:  model.ToDegrees(0, headerNanoDegree, hb.Bbox.Right),
			Top:    model.ToDegrees(0, headerNanoDegree, hb.Bbox.Top),
			Bottom: model.ToDegrees(0, headerNanoDegree, hb.Bbox.Bottom),
		}
	}

	if hb.OsmosisReplicationTimestamp != nil {
		header.OsmosisReplicationTimestamp = time.Unix(*hb.OsmosisReplicationTimestamp, 0).UTC()
	}

	for _, f := range hb.RequiredFeatures {
		switch f {
		case "DenseNodes":
			header.PBFDenseNodes = true
		case "HistoricalInformation":
			header.HasMultipleObjectVersions = true
		}
	}

	if unsupported := header.UnsupportedFeatures(); len(unsupported) > 0 {
		return header, fmt.Errorf("decoder: unsupported required features: %v", unsupported)
	}

	return header, nil
}
